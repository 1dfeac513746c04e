package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/codingconcepts/env"
	"github.com/jrsteele09/rally-session/rallyclient"
	"github.com/jrsteele09/rally-session/tokenstore"
	"github.com/jrsteele09/rally-session/tokenstore/filestore"
	"github.com/jrsteele09/rally-session/tokenstore/memstore"
	"github.com/jrsteele09/rally-session/tokenstore/pgstore"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	storeFile     = "file"
	storeMemory   = "memory"
	storePostgres = "postgres"
)

// Config is read from the environment (and .env), then overridden by flags
type Config struct {
	APIURL      string `env:"RALLY_API_URL" default:"http://localhost:8000"`
	Store       string `env:"RALLY_STORE" default:"file"`
	StorePath   string `env:"RALLY_STORE_PATH"`
	DatabaseURL string `env:"RALLY_DATABASE_URL"`
	LogLevel    string `env:"RALLY_LOG_LEVEL" default:"warn"`
	Timeout     string `env:"RALLY_TIMEOUT" default:"10s"`
}

func loadConfig(cmd *cobra.Command) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}
	cfg := Config{}
	if err := env.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = flagAPIURL
	}
	if flags.Changed("store") {
		cfg.Store = flagStore
	}
	if flags.Changed("store-path") {
		cfg.StorePath = flagStorePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func (c Config) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid RALLY_TIMEOUT %q: %w", c.Timeout, err)
	}
	return d, nil
}

func (c Config) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// backend opens the configured session storage. The returned func releases it.
func (c Config) backend(ctx context.Context) (tokenstore.Backend, func(), error) {
	switch c.Store {
	case storeFile, "":
		path := c.StorePath
		if path == "" {
			var err error
			if path, err = filestore.DefaultPath(); err != nil {
				return nil, nil, err
			}
		}
		store, err := filestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case storeMemory:
		return memstore.New(), func() {}, nil
	case storePostgres:
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("RALLY_DATABASE_URL is required for the postgres store")
		}
		store, err := pgstore.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q, expected file, memory or postgres", c.Store)
	}
}

// openClient builds the session client for a command
func openClient(cmd *cobra.Command) (*rallyclient.Client, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.timeout()
	if err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	backend, release, err := cfg.backend(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := rallyclient.New(ctx, rallyclient.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   timeout,
		UserAgent: "rallyctl",
	}, backend, rallyclient.WithLogger(cfg.logger()))
	if err != nil {
		release()
		return nil, nil, err
	}
	return client, release, nil
}
