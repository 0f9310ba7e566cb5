// Package config loads the service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	TraceExporterOTLP   = "otlp"
	TraceExporterStdout = "stdout"
	TraceExporterNone   = "none"
)

// Config keeps the same environment names the services have always read.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"pos-service"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Storage     string `envconfig:"STORAGE" default:"postgres"`

	Database Database
	Redis    Redis
	Cart     Cart
	Otel     Otel
}

type Database struct {
	Host           string        `envconfig:"DATABASE_HOST" default:"localhost"`
	Port           string        `envconfig:"DATABASE_PORT" default:"5432"`
	User           string        `envconfig:"DATABASE_USER" default:"root"`
	Password       string        `envconfig:"DATABASE_PASSWORD" default:"pass"`
	Name           string        `envconfig:"DATABASE_NAME" default:"pos_db"`
	MaxConns       int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	ConnectRetries int           `envconfig:"DATABASE_CONNECT_RETRIES" default:"30"`
	MigrateOnStart bool          `envconfig:"DATABASE_MIGRATE_ON_START" default:"true"`
	ConnLifetime   time.Duration `envconfig:"DATABASE_CONN_LIFETIME" default:"1h"`
}

type Redis struct {
	URL string `envconfig:"REDIS_URL"`
}

type Cart struct {
	TTL time.Duration `envconfig:"CART_TTL" default:"24h"`
}

type Otel struct {
	Endpoint      string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	TraceExporter string `envconfig:"TRACE_EXPORTER" default:"otlp"`
}

// Load reads the process environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return errors.Errorf("unsupported STORAGE %q", c.Storage)
	}
	switch c.Otel.TraceExporter {
	case TraceExporterOTLP, TraceExporterStdout, TraceExporterNone:
	default:
		return errors.Errorf("unsupported TRACE_EXPORTER %q", c.Otel.TraceExporter)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid LOG_LEVEL")
	}
	if c.Cart.TTL <= 0 {
		return errors.New("CART_TTL must be positive")
	}
	return nil
}

// PostgresURL is the pgx/pgxpool DSN.
func (d Database) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
	)
}

// KeyValueDSN is the lib/pq connection string used for migrations. Every
// value is single quoted so spaces, quotes and backslashes survive parsing.
func (d Database) KeyValueDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		quoteDSNValue(d.Host),
		quoteDSNValue(d.Port),
		quoteDSNValue(d.User),
		quoteDSNValue(d.Password),
		quoteDSNValue(d.Name),
	)
}

func quoteDSNValue(value string) string {
	return "'" + dsnEscaper.Replace(value) + "'"
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// NewLogger builds the process logger. JSON output is used for long running
// commands so log shippers can parse the fields.
func (c *Config) NewLogger(json bool) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
