// Package config loads the ProcessMate TOML configuration file.
//
// The file is optional. Every key has a default, and a file only needs the
// keys it changes:
//
//	[diagram]
//	title = "Achats"
//
//	[layout]
//	lane_width = 400
//	task_width = 180
//
//	[layout.text]
//	chars_per_line = 22
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[store]
//	backend = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
//
// The default location is $XDG_CONFIG_HOME/processmate/config.toml
// (~/.config/processmate/config.toml when XDG_CONFIG_HOME is unset).
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/cache"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/store"
)

// AppName names the configuration, cache and data directories.
const AppName = "processmate"

// Backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the whole configuration file.
type Config struct {
	Diagram DiagramConfig `toml:"diagram"`
	Layout  layout.Config `toml:"layout"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
}

// DiagramConfig holds generation defaults that flags override.
type DiagramConfig struct {
	Title    string `toml:"title"`
	NoColors bool   `toml:"no_colors"`
	Strict   bool   `toml:"strict"`
}

// CacheConfig selects the diagram cache backend.
type CacheConfig struct {
	Backend  string `toml:"backend"` // file, redis or none
	Dir      string `toml:"dir"`     // file backend; empty means the user cache dir
	RedisURL string `toml:"redis_url"`
	Prefix   string `toml:"prefix"` // key prefix for shared Redis instances

	// Redis failures that look transient are retried this many times,
	// waiting RetryDelay before the first retry and doubling after.
	RetryAttempts int           `toml:"retry_attempts"`
	RetryDelay    time.Duration `toml:"retry_delay"`
}

// StoreConfig selects the process-table store backend.
type StoreConfig struct {
	Backend    string `toml:"backend"` // file or mongo
	Dir        string `toml:"dir"`     // file backend; empty means ~/.config/processmate/processes
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Layout: layout.DefaultConfig(),
		Cache: CacheConfig{
			Backend:       BackendFile,
			RetryAttempts: cache.DefaultRetryPolicy.Attempts,
			RetryDelay:    cache.DefaultRetryPolicy.Delay,
		},
		Store: StoreConfig{
			Backend:    BackendFile,
			Database:   AppName,
			Collection: store.DefaultCollection,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    4 << 20,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// Load reads path on top of Default. An empty path means DefaultPath, and
// a missing default file is not an error. A missing explicit file is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return Default(), perrors.Wrap(perrors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return Default(), err
	}
	return decode(string(data), path)
}

// Parse decodes a TOML document on top of Default.
func Parse(data string) (Config, error) {
	return decode(data, "config")
}

// decode rejects unknown keys so that typos do not silently fall back to
// defaults.
func decode(data, source string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return cfg, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "parse %s", source)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, perrors.New(perrors.ErrCodeInvalidFormat, "%s: unknown keys: %s", source, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks backend names and layout geometry.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return perrors.New(perrors.ErrCodeInvalidInput, "cache.redis_url is required for the redis backend")
		}
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "cache.backend must be one of: file, redis, none (got %q)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendFile:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return perrors.New(perrors.ErrCodeInvalidInput, "store.mongo_uri is required for the mongo backend")
		}
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "store.backend must be one of: file, mongo (got %q)", c.Store.Backend)
	}
	if err := c.Layout.Validate(); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "layout")
	}
	return nil
}

// =============================================================================
// Backends
// =============================================================================

// CacheDir returns the file cache directory: Dir if set, else
// $XDG_CACHE_HOME/processmate or ~/.cache/processmate.
func (c CacheConfig) CacheDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// Open creates the configured cache backend and its keyer.
// noCache forces the null cache.
func (c CacheConfig) Open(ctx context.Context, noCache bool) (cache.Cache, cache.Keyer, error) {
	keyer := cache.NewDefaultKeyer()
	if c.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Prefix)
	}
	if noCache {
		return cache.NewNullCache(), keyer, nil
	}

	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), keyer, nil
	case BackendRedis:
		policy := cache.RetryPolicy{Attempts: c.RetryAttempts, Delay: c.RetryDelay}
		rc, err := cache.NewRedisCache(ctx, c.RedisURL, policy)
		if err != nil {
			return nil, nil, perrors.Wrap(perrors.ErrCodeUnavailable, err, "open redis cache")
		}
		return rc, keyer, nil
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return cache.NewNullCache(), keyer, nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, nil, err
		}
		return fc, keyer, nil
	}
}

// Open creates the configured store backend.
func (c StoreConfig) Open(ctx context.Context) (store.Store, error) {
	switch c.Backend {
	case BackendMongo:
		return store.NewMongoStore(ctx, c.MongoURI, c.Database, c.Collection)
	default:
		return store.NewFileStore(c.Dir)
	}
}
