package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/PressureTank/watchlist/backend/common"
	"github.com/PressureTank/watchlist/backend/config"
	"github.com/PressureTank/watchlist/backend/database/sqlite"
	"github.com/PressureTank/watchlist/backend/user"
)

// forgeAdminName and forgeMovies are the demo dataset written by forge.
const forgeAdminName = "Grey Li"

var forgeMovies = []struct{ Title, Year string }{
	{"My Neighbor Totoro", "1988"},
	{"Dead Poets Society", "1989"},
	{"A Perfect World", "1993"},
	{"Leon", "1994"},
	{"Mahjong", "1996"},
	{"Swallowtail Butterfly", "1996"},
	{"King of Comedy", "1999"},
	{"Devils on the Doorstep", "1999"},
	{"WALL-E", "2008"},
	{"The Pork of Music", "2012"},
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
		Sources: cli.EnvVars("WATCHLIST_CONFIG"),
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
		},
		Action: r.Serve,
	}
}

func initdbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "initdb",
		Usage: "Create the database schema",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "drop",
				Usage: "Drop existing tables first",
			},
		},
		Action: r.InitDB,
	}
}

func adminCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Create the admin account or reset its credentials",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Login name of the admin",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Password; prompted for when omitted",
			},
		},
		Action: r.Admin,
	}
}

func forgeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "forge",
		Usage:  "Seed the database with demo data",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Forge,
	}
}

// env is what every command needs once its config is resolved.
type env struct {
	config *config.Config
	logger *zap.Logger
	conn   *sql.DB
	store  *sqlite.SQLiteDB
}

func (e *env) Close() {
	if err := e.conn.Close(); err != nil {
		e.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// open loads the config named by --config, builds the logger and opens the store
// with its schema in place.
func (r *Runner) open(ctx context.Context, cmd *cli.Command) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	logger := r.logger
	if logger == nil {
		if logger, err = newLogger(cfg.Log); err != nil {
			return nil, err
		}
	}

	conn, err := sqlite.Open(cfg.Database.Path, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Error("Error opening database", zap.String("path", cfg.Database.Path), zap.Error(err))
		return nil, err
	}

	return &env{
		config: cfg,
		logger: logger,
		conn:   conn,
		store:  sqlite.NewSQLiteDB(conn, logger.Named("sqlite")),
	}, nil
}

// Serve runs the HTTP server until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.store.InitSchema(ctx, false); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	handler, err := NewRouter(e.config, e.store, e.logger)
	if err != nil {
		return err
	}

	addr := e.config.Server.Addr
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  e.config.Server.ReadTimeout,
		WriteTimeout: e.config.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("Server started", zap.String("addr", addr), zap.Stringer("config", e.config))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		e.logger.Error("Server failed", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	e.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// InitDB creates the schema, dropping the existing tables first with --drop.
// A missing config file is written from the embedded example first.
func (r *Runner) InitDB(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := config.CreateConfigFile(path); err != nil {
				return err
			}
			r.writef("Created config file %s.\n", path)
		}
	}

	e, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	drop := cmd.Bool("drop")
	if err := e.store.InitSchema(ctx, drop); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	e.logger.Info("Initialized database", zap.String("path", e.config.Database.Path), zap.Bool("drop", drop))
	r.writef("Initialized database.\n")
	return nil
}

// Admin creates the admin account, or resets the credentials of the existing one.
func (r *Runner) Admin(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.store.InitSchema(ctx, false); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	password := cmd.String("password")
	if password == "" {
		if password, err = r.promptPassword(); err != nil {
			return err
		}
	}

	svc := user.NewService(e.store, e.config.Auth.BcryptCost, e.logger.Named("user"))

	_, err = svc.Admin(ctx)
	switch {
	case errors.Is(err, common.ErrNotFound):
		r.writef("Creating user...\n")
	case err != nil:
		return err
	default:
		r.writef("Updating user...\n")
	}

	u, err := svc.SetAdmin(ctx, cmd.String("username"), password)
	if err != nil {
		return fmt.Errorf("failed to save admin: %w", err)
	}

	e.logger.Info("Admin saved", zap.Int64("id", u.ID), zap.String("username", u.Username))
	r.writef("Done.\n")
	return nil
}

// Forge writes the demo admin name and movie list in one transaction.
func (r *Runner) Forge(ctx context.Context, cmd *cli.Command) error {
	e, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.store.InitSchema(ctx, false); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	err = e.store.WithTx(ctx, func(tx *sqlite.SQLiteDB) error {
		if _, err := tx.EnsureAdmin(ctx, forgeAdminName); err != nil {
			return err
		}
		for _, m := range forgeMovies {
			if _, err := tx.CreateMovie(ctx, m.Title, m.Year); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to forge data: %w", err)
	}

	e.logger.Info("Forged demo data", zap.Int("movies", len(forgeMovies)))
	r.writef("Done.\n")
	return nil
}

// promptPassword asks for the password twice. Input is read without echo when
// stdin is a terminal.
func (r *Runner) promptPassword() (string, error) {
	first, err := r.readPassword("Password: ")
	if err != nil {
		return "", err
	}
	second, err := r.readPassword("Repeat for confirmation: ")
	if err != nil {
		return "", err
	}

	if first != second {
		return "", fmt.Errorf("%w: passwords do not match", common.ErrInvalidInput)
	}
	if first == "" {
		return "", fmt.Errorf("%w: password must not be empty", common.ErrInvalidInput)
	}
	return first, nil
}

func (r *Runner) readPassword(prompt string) (string, error) {
	r.writef("%s", prompt)

	if f, ok := r.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		r.writef("\n")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := r.input.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
