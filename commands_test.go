package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/PressureTank/watchlist/backend/common"
	"github.com/PressureTank/watchlist/backend/config"
	"github.com/PressureTank/watchlist/backend/database/sqlite"
	"github.com/PressureTank/watchlist/backend/user"
)

// setupConfig writes a config file pointing at a fresh database in a temp dir.
func setupConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	t.Setenv(config.EnvDatabasePath, "")
	t.Setenv(config.EnvSessionSecret, "")

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "watchlist.db")
	configPath = filepath.Join(dir, "watchlist.toml")

	conf := fmt.Sprintf("[database]\npath = %q\n\n[session]\nsecret = \"test-secret\"\n\n[auth]\nbcrypt_cost = 4\n", dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(conf), 0644))
	return configPath, dbPath
}

func run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{
		Logger: zaptest.NewLogger(t),
		Output: &out,
		Input:  strings.NewReader(input),
	})
	err := r.App().Run(context.Background(), append([]string{"watchlist"}, args...))
	return out.String(), err
}

func openStore(t *testing.T, dbPath string) *sqlite.SQLiteDB {
	t.Helper()
	conn, err := sqlite.Open(dbPath, 1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return sqlite.NewSQLiteDB(conn, zaptest.NewLogger(t))
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	assert.Nil(t, r.logger, "logger is built per command from config")
	assert.Equal(t, os.Stdout, r.output)
	assert.Equal(t, os.Stdin, r.stdin)

	names := []string{}
	for _, cmd := range r.App().Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"serve", "initdb", "admin", "forge"}, names)
}

func TestInitDB(t *testing.T) {
	ctx := context.Background()
	configPath, dbPath := setupConfig(t)

	out, err := run(t, "", "initdb", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "Initialized database.\n", out)

	_, err = run(t, "", "forge", "-c", configPath)
	require.NoError(t, err)

	_, err = run(t, "", "initdb", "--config", configPath)
	require.NoError(t, err)
	movies, err := openStore(t, dbPath).ListMovies(ctx)
	require.NoError(t, err)
	assert.Len(t, movies, len(forgeMovies), "initdb without --drop keeps data")

	_, err = run(t, "", "initdb", "-c", configPath, "--drop")
	require.NoError(t, err)
	movies, err = openStore(t, dbPath).ListMovies(ctx)
	require.NoError(t, err)
	assert.Empty(t, movies)
}

func TestInitDBWritesMissingConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "watchlist.toml")
	t.Setenv(config.EnvDatabasePath, filepath.Join(dir, "watchlist.db"))
	t.Setenv(config.EnvSessionSecret, "")

	out, err := run(t, "", "initdb", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "Created config file "+configPath+".\nInitialized database.\n", out)
	assert.FileExists(t, configPath)
	assert.FileExists(t, filepath.Join(dir, "watchlist.db"))

	c, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, config.DefaultSessionSecret, c.Session.Secret)
}

func TestForge(t *testing.T) {
	ctx := context.Background()
	configPath, dbPath := setupConfig(t)

	out, err := run(t, "", "forge", "-c", configPath)
	require.NoError(t, err)
	assert.Equal(t, "Done.\n", out)

	store := openStore(t, dbPath)
	movies, err := store.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 10)
	assert.Equal(t, "My Neighbor Totoro", movies[0].Title)
	assert.Equal(t, "1988", movies[0].Year)

	admin, err := store.GetAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grey Li", admin.Name)
	assert.Empty(t, admin.PasswordHash)

	out, err = run(t, "", "admin", "-c", configPath, "--username", "grey", "--password", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Updating user...\nDone.\n", out)

	admin, err = store.GetAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grey Li", admin.Name, "credential reset keeps the display name")
	assert.Equal(t, "grey", admin.Username)
}

func TestAdminCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("flags", func(t *testing.T) {
		configPath, dbPath := setupConfig(t)

		out, err := run(t, "", "admin", "-c", configPath, "--username", "admin", "--password", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "Creating user...\nDone.\n", out)

		svc := user.NewService(openStore(t, dbPath), 4, zaptest.NewLogger(t))
		u, err := svc.Login(ctx, "admin", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, user.DefaultAdminName, u.Name)
	})

	t.Run("prompted password", func(t *testing.T) {
		configPath, dbPath := setupConfig(t)

		out, err := run(t, "s3cret\ns3cret\n", "admin", "-c", configPath, "-u", "admin")
		require.NoError(t, err)
		assert.Contains(t, out, "Password: ")
		assert.Contains(t, out, "Repeat for confirmation: ")

		svc := user.NewService(openStore(t, dbPath), 4, zaptest.NewLogger(t))
		_, err = svc.Login(ctx, "admin", "s3cret")
		assert.NoError(t, err)
	})

	t.Run("reset invalidates the old password", func(t *testing.T) {
		configPath, dbPath := setupConfig(t)

		_, err := run(t, "", "admin", "-c", configPath, "-u", "admin", "-p", "old")
		require.NoError(t, err)
		_, err = run(t, "", "admin", "-c", configPath, "-u", "root", "-p", "new")
		require.NoError(t, err)

		svc := user.NewService(openStore(t, dbPath), 4, zaptest.NewLogger(t))
		_, err = svc.Login(ctx, "admin", "old")
		assert.True(t, errors.Is(err, common.ErrInvalidCredentials))
		_, err = svc.Login(ctx, "root", "new")
		assert.NoError(t, err)
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		configPath, dbPath := setupConfig(t)

		_, err := run(t, "one\ntwo\n", "admin", "-c", configPath, "-u", "admin")
		assert.True(t, errors.Is(err, common.ErrInvalidInput))

		_, err = openStore(t, dbPath).GetAdmin(ctx)
		assert.True(t, errors.Is(err, common.ErrNotFound), "nothing saved")
	})

	t.Run("username is required", func(t *testing.T) {
		configPath, _ := setupConfig(t)

		_, err := run(t, "", "admin", "-c", configPath, "-p", "pw")
		assert.Error(t, err)
	})
}

func TestInvalidConfig(t *testing.T) {
	configPath, _ := setupConfig(t)
	require.NoError(t, os.WriteFile(configPath, []byte("[auth]\nbcrypt_cost = 99\n"), 0644))

	_, err := run(t, "", "initdb", "-c", configPath)
	assert.ErrorContains(t, err, "auth.bcrypt_cost")
}

func TestPlaceholderSecretIsRejected(t *testing.T) {
	configPath, dbPath := setupConfig(t)
	conf := fmt.Sprintf("[database]\npath = %q\n", dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(conf), 0644))

	for _, args := range [][]string{
		{"serve", "-c", configPath, "--addr", "127.0.0.1:0"},
		{"admin", "-c", configPath, "-u", "admin", "-p", "pw"},
	} {
		_, err := run(t, "", args...)
		assert.ErrorContains(t, err, "session.secret", "%v", args)
	}
	assert.NoFileExists(t, dbPath, "nothing is opened with a guessable secret")
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = newLogger(config.LogConfig{Level: "warn", Development: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
