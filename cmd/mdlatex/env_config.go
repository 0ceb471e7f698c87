package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-mdlatex/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath   string        // MDLATEX_CONFIG: config file name or path
	LogLevel     string        // MDLATEX_LOG_LEVEL: debug, info, warn, error
	LogFormat    string        // MDLATEX_LOG_FORMAT: console, json
	MathJaxURL   string        // MDLATEX_MATHJAX_URL: math engine script
	BatchTimeout time.Duration // MDLATEX_BATCH_TIMEOUT: per-batch deadline
	CacheDir     string        // MDLATEX_CACHE_DIR: disk cache tier
	RedisAddr    string        // MDLATEX_REDIS_ADDR: enables the redis tier
	Addr         string        // MDLATEX_ADDR: serve listen address
}

// knownEnvVars lists valid MDLATEX_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"MDLATEX_CONFIG":        true,
	"MDLATEX_LOG_LEVEL":     true,
	"MDLATEX_LOG_FORMAT":    true,
	"MDLATEX_MATHJAX_URL":   true,
	"MDLATEX_BATCH_TIMEOUT": true,
	"MDLATEX_CACHE_DIR":     true,
	"MDLATEX_REDIS_ADDR":    true,
	"MDLATEX_ADDR":          true,
	"MDLATEX_CONTAINER":     true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("MDLATEX_CONFIG"),
		LogLevel:   os.Getenv("MDLATEX_LOG_LEVEL"),
		LogFormat:  os.Getenv("MDLATEX_LOG_FORMAT"),
		MathJaxURL: os.Getenv("MDLATEX_MATHJAX_URL"),
		CacheDir:   os.Getenv("MDLATEX_CACHE_DIR"),
		RedisAddr:  os.Getenv("MDLATEX_REDIS_ADDR"),
		Addr:       os.Getenv("MDLATEX_ADDR"),
	}

	if timeout := os.Getenv("MDLATEX_BATCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.BatchTimeout = d
		}
	}

	return cfg
}

// warnUnknownEnvVars prints warnings for unrecognized MDLATEX_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MDLATEX_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values over the loaded config.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeRendererFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	if env.MathJaxURL != "" {
		cfg.Renderer.MathJaxURL = env.MathJaxURL
	}
	if env.BatchTimeout > 0 {
		cfg.Scheduler.BatchTimeout = env.BatchTimeout
	}
	if env.CacheDir != "" {
		cfg.Cache.DiskDir = env.CacheDir
	}
	if env.RedisAddr != "" {
		cfg.Cache.Redis.Enabled = true
		cfg.Cache.Redis.Addr = env.RedisAddr
	}
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
}
