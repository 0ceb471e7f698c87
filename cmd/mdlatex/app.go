package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/config"
	"github.com/alnah/go-mdlatex/internal/hints"
	"github.com/alnah/go-mdlatex/internal/imagecache"
)

// app bundles what every rendering command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *mdlatex.Manager
	closers []io.Closer
}

// newApp loads configuration and builds the logger, cache tiers and manager.
// reg, when non-nil, receives the manager metrics.
func newApp(common *commonFlags, rf *rendererFlags, env *Environment, reg prometheus.Registerer) (*app, error) {
	cfg, err := loadConfig(common, rf)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg.Log, env.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	cache, err := a.buildCache()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	m, err := buildManager(cfg, env, logger, cache, reg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.manager = m
	return a, nil
}

// Close shuts down the manager, then the cache backends.
func (a *app) Close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// requestContext bounds one render request. override, when positive, wins
// over scheduler.requestTimeout.
func (a *app) requestContext(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	d := a.cfg.Scheduler.RequestTimeout
	if override > 0 {
		d = override
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// renderFailure maps a render error. Running out of time before the surface
// ever became ready means the surface is unavailable, not that rendering is
// slow.
func (a *app) renderFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && a.manager.Stats().State != mdlatex.SurfaceReady {
		return fmt.Errorf("%w: %w%s%s", ErrSurfaceUnavailable, err, hints.ForBrowserConnect(), hints.ForSurfaceLoad())
	}
	return err
}

// loadConfig resolves configuration.
// Precedence: CLI flags > env vars > config file > defaults.
func loadConfig(common *commonFlags, rf *rendererFlags) (*config.Config, error) {
	envCfg := loadEnvConfig()

	name := common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		var err error
		cfg, err = config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(envCfg, cfg)
	mergeRendererFlags(rf, cfg)

	switch {
	case common.verbose:
		cfg.Log.Level = "debug"
	case common.quiet:
		cfg.Log.Level = "error"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildLogger creates a zap logger writing to w.
func buildLogger(c config.LogConfig, w io.Writer) (*zap.Logger, error) {
	levelName := c.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return nil, fmt.Errorf("%w: log.level %q", config.ErrInvalidValue, c.Level)
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// buildCache stacks the configured tiers: memory, then disk, then redis.
func (a *app) buildCache() (mdlatex.ImageCache, error) {
	c := a.cfg.Cache

	memory, err := imagecache.NewMemory(c.MemoryEntries)
	if err != nil {
		return nil, err
	}
	tiers := []imagecache.Cache{memory}

	if c.DiskDir != "" {
		disk, err := imagecache.NewDisk(c.DiskDir, a.logger)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, disk)
	}

	if c.Redis.Enabled {
		rc := imagecache.DefaultRedisConfig()
		rc.Addr = c.Redis.Addr
		rc.Password = c.Redis.Password
		rc.DB = c.Redis.DB
		if c.Redis.KeyPrefix != "" {
			rc.KeyPrefix = c.Redis.KeyPrefix
		}
		if c.Redis.TTL > 0 {
			rc.TTL = c.Redis.TTL
		}
		redis, err := imagecache.NewRedis(rc, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%w%s", err, hints.ForRedisConnect(rc.Addr))
		}
		a.closers = append(a.closers, redis)
		tiers = append(tiers, redis)
	}

	if len(tiers) == 1 {
		return memory, nil
	}
	return imagecache.NewTiered(tiers...), nil
}

// buildManager creates the render manager from cfg.
func buildManager(cfg *config.Config, env *Environment, logger *zap.Logger, cache mdlatex.ImageCache, reg prometheus.Registerer) (*mdlatex.Manager, error) {
	opts := []mdlatex.Option{
		mdlatex.WithLogger(logger),
		mdlatex.WithCache(cache),
		mdlatex.WithRodOptions(mdlatex.RodOptions{
			BrowserBin:  cfg.Renderer.BrowserBin,
			NoSandbox:   cfg.Renderer.NoSandbox,
			MathJaxURL:  cfg.Renderer.MathJaxURL,
			SurfaceName: cfg.Renderer.Surface,
			AssetsDir:   cfg.Assets.BasePath,
			LoadTimeout: cfg.Renderer.LoadTimeout,
		}),
	}
	if n := cfg.Scheduler.MaxConcurrentBatches; n > 0 {
		opts = append(opts, mdlatex.WithMaxConcurrentBatches(n))
	}
	if d := cfg.Scheduler.BatchTimeout; d > 0 {
		opts = append(opts, mdlatex.WithBatchTimeout(d))
	}
	if s := cfg.Scheduler.Scale; s > 0 {
		opts = append(opts, mdlatex.WithScale(s))
	}
	if env.SurfaceFactory != nil {
		opts = append(opts, mdlatex.WithSurfaceFactory(env.SurfaceFactory))
	}
	if reg != nil {
		opts = append(opts, mdlatex.WithRegisterer(reg))
	}
	return mdlatex.NewManager(opts...)
}
