// Package config holds the configuration of the geoipd service.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/peerwatch/geoipdb/cache"
)

// DBPathEnv names the environment variable consulted when no database path
// is configured.
const DBPathEnv = "GEOIPD_DB_PATH"

// Config is the root configuration of geoipd.
type Config struct {
	DBPath   string       `yaml:"db_path"`
	LogLevel string       `yaml:"log_level"`
	Server   ServerConfig `yaml:"server"`
	Cache    CacheConfig  `yaml:"cache"`
	Reload   ReloadConfig `yaml:"reload"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig selects the cache used to memoize resolved countries.
type CacheConfig struct {
	// Type is one of "map", "lru" or "none".
	Type string `yaml:"type"`
	// Size bounds the lru cache. Ignored by the other types.
	Size int `yaml:"size"`
}

// ReloadConfig configures reloading the database when its file changes.
type ReloadConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// RegisterFlags registers the flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.DBPath, "db.path", "", "Path to the MaxMind DB file. Falls back to $"+DBPathEnv+".")
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Log level: debug, info, warn or error.")
	cfg.Server.RegisterFlags(f)
	cfg.Cache.RegisterFlags(f)
	cfg.Reload.RegisterFlags(f)
}

// RegisterFlags registers the flags.
func (cfg *ServerConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.ListenAddress, "server.listen-address", ":8080", "Address the HTTP server listens on.")
	f.DurationVar(&cfg.ShutdownTimeout, "server.shutdown-timeout", 30*time.Second, "How long to wait for in-flight requests on shutdown.")
}

// RegisterFlags registers the flags.
func (cfg *CacheConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Type, "cache.type", "map", "Country cache: map (unbounded), lru or none.")
	f.IntVar(&cfg.Size, "cache.size", 4096, "Number of records kept by the lru cache.")
}

// RegisterFlags registers the flags.
func (cfg *ReloadConfig) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, "reload.enabled", true, "Reload the database when its file changes.")
	f.DurationVar(&cfg.Debounce, "reload.debounce", 500*time.Millisecond, "Quiet period after the last change before reloading.")
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.DBPath == "" {
		return errors.New("no database configured: set -db.path or $" + DBPathEnv)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Server.ListenAddress == "" {
		return errors.New("server.listen-address must not be empty")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.Errorf("invalid server.shutdown-timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return errors.Wrap(err, "invalid cache config")
	}
	if cfg.Reload.Enabled && cfg.Reload.Debounce < 0 {
		return errors.Errorf("invalid reload.debounce: %s", cfg.Reload.Debounce)
	}
	return nil
}

// Validate checks the cache configuration.
func (cfg *CacheConfig) Validate() error {
	switch cfg.Type {
	case "map", "none":
		return nil
	case "lru":
		if cfg.Size <= 0 {
			return errors.Errorf("lru size must be positive, got %d", cfg.Size)
		}
		return nil
	default:
		return errors.Errorf("unknown cache type %q", cfg.Type)
	}
}

// New builds an empty cache of the configured type. Every database needs
// its own cache since record ids are not stable across files.
func (cfg *CacheConfig) New() (cache.Cache, error) {
	switch cfg.Type {
	case "map":
		return cache.NewMap(), nil
	case "none":
		return cache.NewNone(), nil
	case "lru":
		return cache.NewLRU(cfg.Size)
	default:
		return nil, errors.Errorf("unknown cache type %q", cfg.Type)
	}
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level %q", level)
	}
}

// LoadFile decodes the YAML file at path into cfg. Fields absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

// Parse builds the configuration from command line arguments. Defaults come
// from the flags, a file named by -config.file overrides them, and flags
// given explicitly override the file.
func Parse(name string, args []string) (*Config, error) {
	var cfg Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configFile := fs.String("config.file", "", "YAML configuration file.")
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configFile != "" {
		// Flag values alias cfg, so remember the explicit ones before the
		// file overwrites them.
		explicit := map[string]string{}
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
		if err := LoadFile(*configFile, &cfg); err != nil {
			return nil, err
		}
		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return nil, err
			}
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = os.Getenv(DBPathEnv)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
