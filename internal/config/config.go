// Package config provides configuration management for the timeline service
// and CLI. Configuration is loaded from environment variables (and an
// optional .env file) with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort         = 8788
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".timeline"
	DefaultMaxAttempts  = 4
	DefaultHistoryTTL   = 24 * time.Hour
	DefaultSessionScope = "default"

	// Environment variable names
	EnvPort             = "TIMELINE_PORT"
	EnvLogLevel         = "TIMELINE_LOG_LEVEL"
	EnvDataDir          = "TIMELINE_DATA_DIR"
	EnvAuthToken        = "TIMELINE_AUTH_TOKEN"
	EnvServerURL        = "TIMELINE_SERVER_URL"
	EnvSessionScope     = "TIMELINE_SESSION_SCOPE"
	EnvMaxAttempts      = "TIMELINE_MAX_ATTEMPTS"
	EnvHistoryTTL       = "TIMELINE_HISTORY_TTL"
	EnvRebaseOnConflict = "TIMELINE_REBASE_ON_CONFLICT"

	// Database filenames
	DBFilename      = "timeline.db"
	HistoryFilename = "history.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	HistoryDBPath() string
	AuthToken() string
	ServerURL() string
	SessionScope() string
	MaxAttempts() int
	HistoryTTL() time.Duration
	RebaseOnConflict() bool
}

type envVars struct {
	Port             int           `env:"TIMELINE_PORT" envDefault:"8788"`
	LogLevel         string        `env:"TIMELINE_LOG_LEVEL" envDefault:"info"`
	DataDir          string        `env:"TIMELINE_DATA_DIR"`
	AuthToken        string        `env:"TIMELINE_AUTH_TOKEN"`
	ServerURL        string        `env:"TIMELINE_SERVER_URL"`
	SessionScope     string        `env:"TIMELINE_SESSION_SCOPE" envDefault:"default"`
	MaxAttempts      int           `env:"TIMELINE_MAX_ATTEMPTS" envDefault:"4"`
	HistoryTTL       time.Duration `env:"TIMELINE_HISTORY_TTL" envDefault:"24h"`
	RebaseOnConflict bool          `env:"TIMELINE_REBASE_ON_CONFLICT"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	vars envVars
}

// New loads .env from the working directory when present, then parses the
// environment.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment only.
func FromEnv() (*EnvConfig, error) {
	var vars envVars
	if err := env.Parse(&vars); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if vars.Port < 1 || vars.Port > 65535 {
		return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
	}
	if vars.MaxAttempts < 1 {
		return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMaxAttempts)
	}
	if vars.HistoryTTL <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvHistoryTTL)
	}
	if vars.DataDir == "" {
		vars.DataDir = defaultDataDir()
	}
	vars.ServerURL = strings.TrimRight(vars.ServerURL, "/")

	return &EnvConfig{vars: vars}, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.vars.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.vars.LogLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.vars.DataDir
}

// DBPath returns the full path to the server's SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.vars.DataDir, DBFilename)
}

// HistoryDBPath is the client-side SQLite file that keeps undo/redo stacks.
func (c *EnvConfig) HistoryDBPath() string {
	return filepath.Join(c.vars.DataDir, HistoryFilename)
}

// AuthToken is the bearer token the server requires and the client sends.
// Empty disables auth on the server.
func (c *EnvConfig) AuthToken() string {
	return c.vars.AuthToken
}

// ServerURL is the base URL the CLI talks to. Empty means "serve locally".
func (c *EnvConfig) ServerURL() string {
	if c.vars.ServerURL == "" {
		return fmt.Sprintf("http://127.0.0.1:%d", c.vars.Port)
	}
	return c.vars.ServerURL
}

func (c *EnvConfig) SessionScope() string {
	return c.vars.SessionScope
}

func (c *EnvConfig) MaxAttempts() int {
	return c.vars.MaxAttempts
}

func (c *EnvConfig) HistoryTTL() time.Duration {
	return c.vars.HistoryTTL
}

func (c *EnvConfig) RebaseOnConflict() bool {
	return c.vars.RebaseOnConflict
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
