package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mdlatex/internal/fileutil"
	"github.com/alnah/go-mdlatex/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrOutOfRange      = errors.New("value out of range")
	ErrInvalidValue    = errors.New("invalid value")
)

// Field length limits.
const (
	MaxPathLength   = 4096 // PATH_MAX on Linux
	MaxURLLength    = 2048 // Browser limit
	MaxNameLength   = 100  // Style and surface names
	MaxAddrLength   = 255  // host:port
	MaxPrefixLength = 100  // Redis key prefix
)

// Numeric limits.
const (
	MaxConcurrentBatches = 16
	MaxScale             = 8
	MaxRedisDB           = 15
	MaxMemoryEntries     = 1 << 20
	MaxBurst             = 10000
)

// Config holds all configuration for the renderer, its cache and the CLI.
type Config struct {
	Renderer  RendererConfig  `yaml:"renderer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Assets    AssetsConfig    `yaml:"assets"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

// RendererConfig defines the headless browser surface.
type RendererConfig struct {
	BrowserBin  string        `yaml:"browserBin"` // Empty = $ROD_BROWSER_BIN or rod lookup
	NoSandbox   bool          `yaml:"noSandbox"`
	MathJaxURL  string        `yaml:"mathjaxURL"`  // Empty = CDN default
	Surface     string        `yaml:"surface"`     // Surface page name (default: "mathjax")
	LoadTimeout time.Duration `yaml:"loadTimeout"` // 0 = library default
}

// SchedulerConfig defines batch admission.
type SchedulerConfig struct {
	MaxConcurrentBatches int           `yaml:"maxConcurrentBatches"` // 1-16 (default: 2)
	BatchTimeout         time.Duration `yaml:"batchTimeout"`         // default: 15s
	Scale                int           `yaml:"scale"`                // 1-8 (default: 1)
	RequestTimeout       time.Duration `yaml:"requestTimeout"`       // whole request, 0 = none (default: 2m)
}

// CacheConfig defines the image cache tiers.
type CacheConfig struct {
	MemoryEntries int         `yaml:"memoryEntries"` // LRU size (default: 512)
	DiskDir       string      `yaml:"diskDir"`       // Empty = no disk tier
	Redis         RedisConfig `yaml:"redis"`
}

// RedisConfig defines the shared redis tier.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MarkdownConfig defines HTML output for the markdown command.
type MarkdownConfig struct {
	Style          string `yaml:"style"`          // Stylesheet name, "none" disables
	HighlightStyle string `yaml:"highlightStyle"` // chroma style, "none" disables
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
}

// LogConfig defines logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ServerConfig defines the HTTP server of the serve command.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       float64       `yaml:"rateLimit"` // requests/s per client IP, 0 = unlimited
	Burst           int           `yaml:"burst"`
}

// Validate checks lengths and ranges. Zero values mean "use the default"
// and always pass. Called automatically by LoadConfig.
func (c *Config) Validate() error {
	// Validate renderer fields
	if err := validateFieldLength("renderer.browserBin", c.Renderer.BrowserBin, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("renderer.mathjaxURL", c.Renderer.MathJaxURL, MaxURLLength); err != nil {
		return err
	}
	if err := validateFieldLength("renderer.surface", c.Renderer.Surface, MaxNameLength); err != nil {
		return err
	}
	if c.Renderer.LoadTimeout < 0 {
		return fmt.Errorf("%w: renderer.loadTimeout must not be negative, got %s", ErrOutOfRange, c.Renderer.LoadTimeout)
	}

	// Validate scheduler fields
	if err := validateRange("scheduler.maxConcurrentBatches", c.Scheduler.MaxConcurrentBatches, 0, MaxConcurrentBatches); err != nil {
		return err
	}
	if c.Scheduler.BatchTimeout < 0 {
		return fmt.Errorf("%w: scheduler.batchTimeout must not be negative, got %s", ErrOutOfRange, c.Scheduler.BatchTimeout)
	}
	if err := validateRange("scheduler.scale", c.Scheduler.Scale, 0, MaxScale); err != nil {
		return err
	}
	if c.Scheduler.RequestTimeout < 0 {
		return fmt.Errorf("%w: scheduler.requestTimeout must not be negative, got %s", ErrOutOfRange, c.Scheduler.RequestTimeout)
	}

	// Validate cache fields
	if err := validateRange("cache.memoryEntries", c.Cache.MemoryEntries, 0, MaxMemoryEntries); err != nil {
		return err
	}
	if err := validateFieldLength("cache.diskDir", c.Cache.DiskDir, MaxPathLength); err != nil {
		return err
	}
	if c.Cache.Redis.Enabled {
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr: required when redis is enabled", ErrInvalidValue)
		}
		if err := validateFieldLength("cache.redis.addr", c.Cache.Redis.Addr, MaxAddrLength); err != nil {
			return err
		}
		if err := validateFieldLength("cache.redis.keyPrefix", c.Cache.Redis.KeyPrefix, MaxPrefixLength); err != nil {
			return err
		}
		if err := validateRange("cache.redis.db", c.Cache.Redis.DB, 0, MaxRedisDB); err != nil {
			return err
		}
		if c.Cache.Redis.TTL < 0 {
			return fmt.Errorf("%w: cache.redis.ttl must not be negative, got %s", ErrOutOfRange, c.Cache.Redis.TTL)
		}
	}

	// Validate markdown and assets fields
	if err := validateFieldLength("markdown.style", c.Markdown.Style, MaxNameLength); err != nil {
		return err
	}
	if err := validateFieldLength("markdown.highlightStyle", c.Markdown.HighlightStyle, MaxNameLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}

	// Validate log fields
	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "debug", "info", "warn", "error":
			// valid
		default:
			return fmt.Errorf("%w: log.level %q (must be debug, info, warn, or error)", ErrInvalidValue, c.Log.Level)
		}
	}
	if c.Log.Format != "" {
		switch strings.ToLower(c.Log.Format) {
		case "console", "json":
			// valid
		default:
			return fmt.Errorf("%w: log.format %q (must be console or json)", ErrInvalidValue, c.Log.Format)
		}
	}

	// Validate server fields
	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: server.shutdownTimeout must not be negative, got %s", ErrOutOfRange, c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rateLimit must not be negative, got %.2f", ErrOutOfRange, c.Server.RateLimit)
	}
	if err := validateRange("server.burst", c.Server.Burst, 0, MaxBurst); err != nil {
		return err
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateRange checks that value lies in [lo, hi].
func validateRange(fieldName string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrOutOfRange, fieldName, lo, hi, value)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrentBatches: 2,
			BatchTimeout:         15 * time.Second,
			Scale:                1,
			RequestTimeout:       2 * time.Minute,
		},
		Cache: CacheConfig{
			MemoryEntries: 512,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "mdlatex:img:",
				TTL:       24 * time.Hour,
			},
		},
		Markdown: MarkdownConfig{Style: "github", HighlightStyle: "github"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			Burst:           20,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields absent from the file keep their DefaultConfig values.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-mdlatex/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	// Try current directory first (both extensions)
	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	// Try user config directory (both extensions)
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-mdlatex", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
