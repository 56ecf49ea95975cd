// Package config loads the service configuration: built-in defaults, then an
// optional YAML file, then COLLYBRIX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when none is given explicitly.
const DefaultPath = "collybrix.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COLLYBRIX_"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Identity IdentityConfig `yaml:"identity" envPrefix:"IDENTITY_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	StaticDir       string        `yaml:"staticDir" env:"STATIC_DIR"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Driver           string `yaml:"driver" env:"DRIVER"`
	SQLitePath       string `yaml:"sqlitePath" env:"SQLITE_PATH"`
	MongoURI         string `yaml:"mongoURI" env:"MONGO_URI"`
	MongoDatabase    string `yaml:"mongoDatabase" env:"MONGO_DATABASE"`
	MongoMaxPoolSize uint64 `yaml:"mongoMaxPoolSize" env:"MONGO_MAX_POOL_SIZE"`
}

// AuthConfig controls session-token checks on the API.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// IdentityConfig points at the identity provider's user directory.
type IdentityConfig struct {
	APIURL       string        `yaml:"apiURL" env:"API_URL"`
	APIKey       string        `yaml:"apiKey" env:"API_KEY"`
	UserIDPrefix string        `yaml:"userIDPrefix" env:"USER_ID_PREFIX"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			StaticDir:       "web/dist",
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:           DriverSQLite,
			SQLitePath:       "data/collybrix.db",
			MongoDatabase:    "collybrix",
			MongoMaxPoolSize: 10,
		},
		Identity: IdentityConfig{
			UserIDPrefix: "user_",
			Timeout:      10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlitePath is required for the sqlite driver"))
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongoURI is required for the mongo driver"))
		}
		if c.Storage.MongoDatabase == "" {
			errs = append(errs, errors.New("storage.mongoDatabase is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %s or %s, got %q", DriverSQLite, DriverMongo, c.Storage.Driver))
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required when auth is enabled"))
	}
	if c.Identity.UserIDPrefix == "" {
		errs = append(errs, errors.New("identity.userIDPrefix must not be empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
