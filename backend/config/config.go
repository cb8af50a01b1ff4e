// Package config loads the watchlist configuration from a TOML file.
//
// Defaults come from the embedded config.example.toml; a file on disk replaces
// any value it sets, and a few environment variables override both.
package config

import (
	"bytes"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultSessionSecret is the placeholder secret of the embedded example config.
const DefaultSessionSecret = "dev-secret-change-me"

// Environment variables that take precedence over the config file.
const (
	EnvDatabasePath  = "WATCHLIST_DB_PATH"
	EnvSessionSecret = "WATCHLIST_SESSION_SECRET"
	EnvAddr          = "WATCHLIST_ADDR"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Auth     AuthConfig     `toml:"auth"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret     string        `toml:"secret"`
	CookieName string        `toml:"cookie_name"`
	TTL        time.Duration `toml:"ttl"`
	Secure     bool          `toml:"secure"`
}

// AuthConfig contains password hashing and login throttling settings.
type AuthConfig struct {
	BcryptCost             int `toml:"bcrypt_cost"`
	LoginAttemptsPerMinute int `toml:"login_attempts_per_minute"`
	LoginBurst             int `toml:"login_burst"`
}

// LogConfig selects the zap logger flavour and level.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// DefaultConfig returns the configuration described by the embedded example file.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads the TOML file at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Load returns the configuration at path when the file exists, the defaults
// otherwise, with environment overrides applied and the result validated.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err = LoadConfig(path); err != nil {
				return nil, err
			}
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateConfigFile writes the embedded example config to path with a freshly
// generated session secret. It refuses to overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	secret, err := randomSecret(32)
	if err != nil {
		return fmt.Errorf("failed to generate session secret: %w", err)
	}
	conf := bytes.Replace(exampleConf, []byte(DefaultSessionSecret), []byte(secret), 1)

	if err := os.WriteFile(path, conf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.Session.Secret == "":
		errs = append(errs, errors.New("session.secret must not be empty"))
	case c.Session.Secret == DefaultSessionSecret && !c.Log.Development:
		errs = append(errs, fmt.Errorf("session.secret is the example placeholder; set a secret or %s", EnvSessionSecret))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name must not be empty"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// String returns a printable form of the config with the secret masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, DB: %s, Session: %s ttl=%s secret=***}",
		c.Server.Addr, c.Database.Path, c.Session.CookieName, c.Session.TTL)
}

func randomSecret(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDatabasePath); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := os.LookupEnv(EnvSessionSecret); ok && v != "" {
		c.Session.Secret = v
	}
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
}
