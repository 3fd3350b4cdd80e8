// Package config loads the pgdescribe YAML configuration file.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/describe"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/filestore"
	"github.com/koustreak/pgdescribe/internal/logger"
)

// EnvDSN overrides database.dsn when set.
const EnvDSN = "PGDESCRIBE_DSN"

// Config is the top level of the configuration file.
type Config struct {
	Database *database.Config  `yaml:"database"`
	Log      *logger.Config    `yaml:"log"`
	Describe describe.Options  `yaml:"describe"`
	Store    *filestore.Config `yaml:"store"`
	Server   Server            `yaml:"server"`
}

// Server configures the HTTP describe service.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns a configuration that works against a local database
// named by PGDESCRIBE_DSN.
func Default() *Config {
	return &Config{
		Database: database.DefaultConfig(""),
		Log:      logger.DefaultConfig(),
		Describe: describe.DefaultOptions(),
		Store:    filestore.DefaultConfig(),
		Server:   Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
	}
}

// Load reads path over the defaults, applies the environment and validates
// the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errs.Wrap(errs.ErrKindNotFound, "config file not found", err)
			}
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg. Keys absent from data keep the values
// already in cfg; a section left empty (`database:` with no body, or
// `log: null`) falls back to its default.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid config file", err)
	}
	def := Default()
	if cfg.Database == nil {
		cfg.Database = def.Database
	}
	if cfg.Log == nil {
		cfg.Log = def.Log
	}
	if cfg.Store == nil {
		cfg.Store = def.Store
	}
	return nil
}

// Validate checks the fields that have a fixed set of values. A missing DSN
// is not an error here because offline describes do not need one.
func (c *Config) Validate() error {
	if c.Database == nil || c.Log == nil || c.Store == nil {
		return errs.New(errs.ErrKindInvalidInput, "database, log and store sections must be set")
	}
	switch c.Database.TLSMode {
	case database.TLSDisable, database.TLSPrefer, database.TLSRequire, database.TLSVerifyFull:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "database.tls_mode: unknown mode %q", c.Database.TLSMode)
	}
	if c.Database.PoolSize < 1 {
		return errs.Newf(errs.ErrKindInvalidInput, "database.pool_size must be at least 1, got %d", c.Database.PoolSize)
	}
	if c.Database.ConnectTimeout < 0 || c.Database.QueryTimeout < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database timeouts must not be negative")
	}

	switch c.Store.Provider {
	case filestore.ProviderLocal:
		if c.Store.Dir == "" {
			return errs.New(errs.ErrKindInvalidInput, "store.dir is required for the local provider")
		}
	case filestore.ProviderMinIO:
		if c.Store.Endpoint == "" || c.Store.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "store.endpoint and store.bucket are required for the minio provider")
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "store.provider: unknown provider %q", c.Store.Provider)
	}

	if c.Server.Addr == "" {
		return errs.New(errs.ErrKindInvalidInput, "server.addr is required")
	}
	return nil
}

// RequireDSN reports an error when no database is configured.
func (c *Config) RequireDSN() error {
	if c.Database == nil || c.Database.DSN == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "no database configured: set database.dsn or %s", EnvDSN)
	}
	return nil
}
