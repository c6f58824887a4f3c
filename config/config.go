// Package config loads heartbeatkit settings from TOML files in standard
// locations, with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/logging"
	"github.com/vinayprograms/heartbeatkit/storage"
)

// FileName is the config file name searched for in standard locations.
const FileName = "heartbeat.toml"

// Config holds heartbeatkit settings.
//
//	capacity = 30
//	log_level = "warn"
//
//	[storage]
//	backend = "sqlite"
//	directory = "/var/lib/myapp/heartbeats"
//
//	[nats]
//	url = "nats://127.0.0.1:4222"
//	bucket = "heartbeats"
//
//	[sqlite]
//	path = "/var/lib/myapp/heartbeats.db"
type Config struct {
	Capacity int           `toml:"capacity"`
	LogLevel string        `toml:"log_level"`
	Storage  StorageConfig `toml:"storage"`
	NATS     NATSConfig    `toml:"nats"`
	SQLite   SQLiteConfig  `toml:"sqlite"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend   string `toml:"backend"`
	Directory string `toml:"directory"`
}

// NATSConfig configures the nats backend.
type NATSConfig struct {
	URL    string `toml:"url"`
	Bucket string `toml:"bucket"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Capacity: 30,
		LogLevel: "warn",
		Storage: StorageConfig{
			Backend: string(storage.BackendFile),
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Capacity < 0 {
		return hberrors.InvalidInput(fmt.Sprintf("capacity must not be negative, got %d", c.Capacity))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return hberrors.WrapWithCode(err, hberrors.ErrCodeInvalidInput, "log_level")
	}
	switch storage.Backend(c.Storage.Backend) {
	case storage.BackendFile, storage.BackendMemory, storage.BackendNATS, storage.BackendSQLite:
	default:
		return hberrors.InvalidInput(fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	return nil
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{}

	// 1. Current directory
	paths = append(paths, FileName)

	// 2. $XDG_CONFIG_HOME/heartbeatkit/heartbeat.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, "heartbeatkit", FileName))

	// 3. System-wide config directories
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, "heartbeatkit", FileName))
	}

	return paths
}

// Load loads the first config file found in StandardPaths, or Default if
// there is none. Environment overrides are applied either way. The path of
// the file used is returned, or "" if none.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}

	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// LoadFile loads a config file over Default, applies environment
// overrides and validates the result. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeInvalidInput, "parse "+path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, hberrors.InvalidInput(fmt.Sprintf("%s: unknown keys %s", path, strings.Join(keys, ", ")))
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables that override file settings.
const (
	EnvLogLevel       = "HEARTBEATKIT_LOG_LEVEL"
	EnvStorageBackend = "HEARTBEATKIT_STORAGE_BACKEND"
	EnvStorageDir     = "HEARTBEATKIT_STORAGE_DIR"
	EnvNATSURL        = "HEARTBEATKIT_NATS_URL"
)

// ApplyEnv overrides settings from non-empty environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvStorageBackend); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorageDir); v != "" {
		c.Storage.Directory = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.NATS.URL = v
	}
}

// FactoryConfig returns the storage factory settings.
func (c *Config) FactoryConfig() storage.FactoryConfig {
	return storage.FactoryConfig{
		Backend:    storage.Backend(c.Storage.Backend),
		Directory:  c.Storage.Directory,
		NATSURL:    c.NATS.URL,
		NATSBucket: c.NATS.Bucket,
		SQLitePath: c.SQLite.Path,
	}
}

// Logger returns a logger at the configured level.
func (c *Config) Logger() *logging.Logger {
	l := logging.New()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(level)
	}
	return l
}
