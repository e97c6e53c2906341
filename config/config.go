// Package config reads server settings from the environment and builds the
// pieces that depend on them: the logger and the session store backend.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/session"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds every environment-driven setting of the server.
type Config struct {
	Host string `env:"HOST" envDefault:"localhost"`
	Port int    `env:"PORT" envDefault:"8080"`

	StoreBackend string        `env:"STORE_BACKEND" envDefault:"file"`
	SessionsDir  string        `env:"SESSIONS_DIR" envDefault:"sessions"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"memory-tiles.db"`
	PostgresDSN  string        `env:"POSTGRES_DSN"`
	RedisURL     string        `env:"REDIS_URL"`
	RedisTTL     time.Duration `env:"REDIS_TTL" envDefault:"720h"`
	NATSURL      string        `env:"NATS_URL"`

	ImageSetsDir    string `env:"IMAGE_SETS_DIR" envDefault:"imagesets"`
	DefaultImageSet string `env:"DEFAULT_IMAGE_SET" envDefault:"default"`

	AutosaveDelay   time.Duration `env:"AUTOSAVE_DELAY" envDefault:"1s"`
	MatchDelay      time.Duration `env:"MATCH_DELAY" envDefault:"600ms"`
	MismatchDelay   time.Duration `env:"MISMATCH_DELAY" envDefault:"1s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// LoadDotEnv loads .env from the working directory if it exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.NgrokAuthToken == "" {
		cfg.NgrokAuthToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MismatchDelay <= c.MatchDelay {
		return fmt.Errorf("MISMATCH_DELAY (%s) must be longer than MATCH_DELAY (%s)", c.MismatchDelay, c.MatchDelay)
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be positive")
	}
	return nil
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT. Logs go
// to stderr so the MCP stdio transport keeps stdout to itself.
func NewLogger(c *Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.LogFormat) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return logger, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the configured session store. The returned closer releases
// its connections and is safe to call when the backend has none.
func OpenStore(ctx context.Context, c *Config) (session.Store, io.Closer, error) {
	switch c.StoreBackend {
	case BackendMemory:
		return session.NewMemoryStore(), nopCloser{}, nil
	case BackendFile:
		store, err := session.NewFileStore(c.SessionsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nopCloser{}, nil
	case BackendSQLite:
		store, err := session.OpenSQLite(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case BackendPostgres:
		store, err := session.OpenPostgres(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case BackendRedis:
		store, err := session.OpenRedis(ctx, c.RedisURL, c.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
}
