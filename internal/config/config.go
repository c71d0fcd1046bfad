// Package config provides configuration management for the key-value
// store. It loads settings from an optional YAML file and a `.env` file,
// falling back to built-in defaults when no file is present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Defaults for every knob a Config can carry.
const (
	DefaultDataDir         = ".kvstore/data"
	DefaultMaxFileSize     = 1 << 30 // 1 GiB
	DefaultReaderCacheSize = 32
	DefaultSyncOnWrite     = true
	DefaultHTTPPort        = 5555
)

// Config holds all application configuration values. Zero-valued fields
// left unset by a partially-specified YAML file are filled in by
// Default() before Load returns.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	MaxFileSize     uint64 `yaml:"max_file_size"`
	ReaderCacheSize int    `yaml:"reader_cache_size"`
	SyncOnWrite     bool   `yaml:"sync_on_write"`
	HTTPPort        uint16 `yaml:"http_port"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		DataDir:         DefaultDataDir,
		MaxFileSize:     DefaultMaxFileSize,
		ReaderCacheSize: DefaultReaderCacheSize,
		SyncOnWrite:     DefaultSyncOnWrite,
		HTTPPort:        DefaultHTTPPort,
	}
}

var (
	once       sync.Once
	appConfig  *Config
	appInitErr error
)

// Load reads configuration from path, a YAML file, overlaying it on top
// of Default(). A missing path is not an error — the defaults apply
// as-is, matching spec.md's requirement that the engine work standalone
// without a config file. Environment variables referenced as ${VAR} in
// the file are expanded via os.ExpandEnv. A ".env" file in the current
// working directory, if present, is loaded first (and is itself optional).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found or failed to load it", "error", err)
	} else {
		slog.Debug("config: .env file loaded")
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config: no config file found, using defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	slog.Info("config: loaded from file", "path", path, "data_dir", cfg.DataDir)
	return cfg, nil
}

// LoadOnce loads the configuration at path exactly once per process and
// caches the result; subsequent calls (regardless of path) return the
// cached Config. This mirrors the teacher's singleton-access pattern for
// CLI entry points that call configuration loading from multiple places
// but want a single consistent view.
func LoadOnce(path string) (*Config, error) {
	once.Do(func() {
		appConfig, appInitErr = Load(path)
	})
	return appConfig, appInitErr
}
