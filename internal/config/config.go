package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/player"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

const (
	appName = "cloudwaves"

	defaultCacheCapacity = "1 GB"
	defaultBaseURL       = "http://localhost:3000"
	defaultTimeout       = 15 * time.Second
	defaultLogLevel      = "info"
)

type Config struct {
	Quality       string `koanf:"quality"`        // "128k", "192k", "320k" or "lossless"
	CacheCapacity string `koanf:"cache_capacity"` // e.g. "1 GB", "500MiB"
	CacheDir      string `koanf:"cache_dir"`
	AutoCheck     bool   `koanf:"auto_check"` // daily check-in after automatic sign-in
	Boundary      string `koanf:"boundary"`   // "wrap", "clamp" or "noop"
	Volume        *int   `koanf:"volume"`     // percent (default: 85)
	Notifications *bool  `koanf:"notifications"`

	// Catalog service
	API APIConfig `koanf:"api"`

	Logging LoggingConfig `koanf:"logging"`
}

// APIConfig holds the catalog service connection settings.
type APIConfig struct {
	BaseURL string `koanf:"base_url"` // e.g., "http://localhost:3000"
	Timeout string `koanf:"timeout"`  // Go duration (default: 15s)
	Offline bool   `koanf:"offline"`  // use the in-process catalog
}

// LoggingConfig holds log file settings.
type LoggingConfig struct {
	File  string `koanf:"file"`
	Level string `koanf:"level"` // "debug", "info", "warn" or "error"
}

func Load() (*Config, error) {
	return loadFrom(getConfigPaths())
}

func loadFrom(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Later files override earlier ones
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.CacheDir = expandPath(cfg.CacheDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/cloudwaves/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate reports every setting that cannot be parsed.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.GetQuality(); err != nil {
		errs = append(errs, fmt.Errorf("quality: %w", err))
	}
	if _, err := c.GetCacheCapacity(); err != nil {
		errs = append(errs, fmt.Errorf("cache_capacity: %w", err))
	}
	if _, err := c.GetBoundary(); err != nil {
		errs = append(errs, fmt.Errorf("boundary: %w", err))
	}
	if _, err := c.GetAPIConfig().GetTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("api.timeout: %w", err))
	}
	return errors.Join(errs...)
}

// GetQuality returns the configured audio tier (default: 320k).
func (c *Config) GetQuality() (catalog.Quality, error) {
	if c.Quality == "" {
		return catalog.DefaultQuality, nil
	}
	return catalog.ParseQuality(c.Quality)
}

// GetCacheCapacity returns the cache capacity in bytes (default: 1 GB).
func (c *Config) GetCacheCapacity() (int64, error) {
	s := c.CacheCapacity
	if s == "" {
		s = defaultCacheCapacity
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// GetCacheDir returns the cache root (default: $XDG_CACHE_HOME/cloudwaves).
func (c *Config) GetCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(xdg.CacheHome, appName)
}

// GetBoundary returns the queue boundary policy (default: wrap).
func (c *Config) GetBoundary() (queue.BoundaryPolicy, error) {
	return queue.ParseBoundaryPolicy(c.Boundary)
}

// GetVolume returns the startup volume, clamped to 0..100 (default: 85).
func (c *Config) GetVolume() int {
	if c.Volume == nil {
		return player.DefaultVolume
	}
	return min(max(*c.Volume, 0), 100)
}

// NotificationsEnabled returns whether desktop notifications are shown
// (default: true).
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications == nil || *c.Notifications
}

// GetAPIConfig returns the catalog service settings with defaults applied.
func (c *Config) GetAPIConfig() APIConfig {
	cfg := c.API
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return cfg
}

// GetTimeout parses the request timeout (default: 15s).
func (a APIConfig) GetTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", a.Timeout)
	}
	return d, nil
}

// GetLoggingConfig returns the logging settings with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	cfg := c.Logging
	if cfg.File == "" {
		cfg.File = filepath.Join(xdg.StateHome, appName, appName+".log")
	}
	if cfg.Level == "" {
		cfg.Level = defaultLogLevel
	}
	return cfg
}
