package mdlatex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Scheduler defaults.
const (
	// DefaultMaxConcurrentBatches caps batches in flight on the surface.
	DefaultMaxConcurrentBatches = 2

	// DefaultBatchTimeout bounds the wait for one batch result.
	DefaultBatchTimeout = 15 * time.Second

	// metricsNamespace prefixes every exported metric.
	metricsNamespace = "mdlatex"
)

// Option configures a Manager.
type Option func(*Manager)

// managerConfig holds internal configuration for Manager.
type managerConfig struct {
	maxConcurrent int
	batchTimeout  time.Duration
	scale         int
	registerer    prometheus.Registerer
	rod           RodOptions
}

// ImageCache is the bitmap store used by the Manager. It must be safe for
// concurrent use. Implementations live in internal/imagecache.
type ImageCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
	ClearMemory()
}

// WithMaxConcurrentBatches sets how many batches may be in flight at once.
// Panics if n < 1 (programmer error, similar to time.NewTicker).
func WithMaxConcurrentBatches(n int) Option {
	if n < 1 {
		panic("mdlatex: WithMaxConcurrentBatches requires n >= 1")
	}
	return func(m *Manager) {
		m.cfg.maxConcurrent = n
	}
}

// WithBatchTimeout sets the per-batch deadline.
// Panics if d <= 0.
func WithBatchTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mdlatex: WithBatchTimeout duration must be positive")
	}
	return func(m *Manager) {
		m.cfg.batchTimeout = d
	}
}

// WithScale sets the raster scale factor used for cache keys and rendering.
// Panics if scale < 1.
func WithScale(scale int) Option {
	if scale < 1 {
		panic("mdlatex: WithScale requires scale >= 1")
	}
	return func(m *Manager) {
		m.cfg.scale = scale
	}
}

// WithCache sets the image cache. Defaults to an in-memory LRU.
func WithCache(c ImageCache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithSurfaceFactory sets how rendering surfaces are built.
// Defaults to a headless Chrome surface configured by WithRodOptions.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(m *Manager) {
		m.newSurface = f
	}
}

// WithRodOptions configures the default headless Chrome surface.
func WithRodOptions(opts RodOptions) Option {
	return func(m *Manager) {
		m.cfg.rod = opts
	}
}

// WithDispatcher sets where completion callbacks run.
// Defaults to a SerialDispatcher owned and closed by the Manager.
func WithDispatcher(d Dispatcher) Option {
	return func(m *Manager) {
		m.dispatcher = d
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRegisterer registers the Manager's Prometheus metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.cfg.registerer = reg
	}
}
