package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const defaultConfigPath = "watchlist.toml"

// Runner holds the dependencies shared by every CLI command.
type Runner struct {
	logger *zap.Logger
	output io.Writer
	stdin  io.Reader
	input  *bufio.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
// A nil Logger makes each command build one from its config file.
type RunnerOpts struct {
	Logger *zap.Logger
	Output io.Writer
	Input  io.Reader
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
		stdin:  opts.Input,
		input:  bufio.NewReader(opts.Input),
	}
}

// App builds the watchlist command tree.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:     "watchlist",
		Usage:    "A personal movie watchlist",
		Version:  "1.0.0",
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, initdbCommand, adminCommand, forgeCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writef(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() // Flushes buffer, if any

	runner := NewRunner(RunnerOpts{})
	if err := runner.App().Run(context.Background(), os.Args); err != nil {
		logger.Fatal("application error", zap.Error(err))
	}
}
