// Package config loads runtime settings from the environment.
package config

import (
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "PHARMAMAP"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config настройки сервиса. Nested groups add their tag to the prefix:
// Postgres.DSN is read from PHARMAMAP_POSTGRES_DSN.
type Config struct {
	HTTP     HTTPConfig     `envconfig:"HTTP"`
	Log      LogConfig      `envconfig:"LOG"`
	Storage  StorageConfig  `envconfig:"STORAGE"`
	Postgres PostgresConfig `envconfig:"POSTGRES"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Search   SearchConfig   `envconfig:"SEARCH"`
	AMQP     AMQPConfig     `envconfig:"AMQP"`
	SeedFile string         `envconfig:"SEED_FILE"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"ADDR" default:":9091"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"`
}

type StorageConfig struct {
	Driver string `envconfig:"DRIVER" default:"memory"`
}

type PostgresConfig struct {
	DSN             string        `envconfig:"DSN"`
	MaxConns        int32         `envconfig:"MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type SearchConfig struct {
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5s"`
	CacheSize int           `envconfig:"CACHE_SIZE" default:"1024"`
}

type AMQPConfig struct {
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"pharmamap.events"`
}

// Load reads an optional .env file and then the PHARMAMAP_* environment.
// Variables already present in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "failed to load %s", envFile)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("PHARMAMAP_POSTGRES_DSN is required for the postgres storage driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Search.CacheTTL < 0 {
		return errors.New("search cache ttl must not be negative")
	}
	if c.Search.CacheSize <= 0 {
		return errors.New("search cache size must be positive")
	}
	return nil
}
