// Package config loads runtime configuration from .cmdataset.yaml,
// CMDATASET_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cropmodel/dataset/internal/filetype"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ScanConfig controls directory traversal.
type ScanConfig struct {
	SkipDotFiles bool `mapstructure:"skip_dot_files"`
}

// ClassifyConfig controls content-based file classification.
type ClassifyConfig struct {
	Extensions []string `mapstructure:"extensions"`
	CacheSize  int      `mapstructure:"cache_size"`
}

// PackageConfig controls the layout of submission packages.
type PackageConfig struct {
	RootDir string `mapstructure:"root_dir"`
	AcmoDir string `mapstructure:"acmo_dir"`
}

// StoreConfig controls run-history persistence.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Bind                   string `mapstructure:"bind"`
	Port                   int    `mapstructure:"port"`
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	MaxSessions            int    `mapstructure:"max_sessions"`
	SessionTimeoutMinutes  int    `mapstructure:"session_timeout_minutes"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

// WatchConfig controls the rescan loop.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Config holds all runtime configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Package  PackageConfig  `mapstructure:"package"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("scan.skip_dot_files", true)
	v.SetDefault("classify.extensions", filetype.DefaultExtensions)
	v.SetDefault("classify.cache_size", 512)
	v.SetDefault("package.root_dir", "")
	v.SetDefault("package.acmo_dir", "ACMOS")
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "./data/runs.duckdb")
	v.SetDefault("server.bind", "127.0.0.1")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.max_sessions", 10)
	v.SetDefault("server.session_timeout_minutes", 30)
	v.SetDefault("server.cleanup_interval_minutes", 5)
	v.SetDefault("watch.debounce_ms", 500)
}

// Init prepares v to read the config file, environment and defaults.
// An explicit cfgFile wins over the search path.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".cmdataset")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix("CMDATASET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// Load unmarshals the effective configuration from v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Store.Path != "" && !filepath.IsAbs(cfg.Store.Path) {
		if abs, err := filepath.Abs(cfg.Store.Path); err == nil {
			cfg.Store.Path = abs
		}
	}
	return cfg, nil
}

// ServerAddr returns the listen address.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// SessionTimeout returns how long finished validation sessions are kept.
func (c Config) SessionTimeout() time.Duration {
	return time.Duration(c.Server.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often expired sessions are dropped.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.Server.CleanupIntervalMinutes) * time.Minute
}

// Debounce returns the watch debounce interval.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
