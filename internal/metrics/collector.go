package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Batch outcomes used as the "outcome" label.
const (
	OutcomeSuccess         = "success"
	OutcomeTimeout         = "timeout"
	OutcomeDispatchFailure = "dispatch_failure"
	OutcomeEncodeFailure   = "encode_failure"
	OutcomeCancelled       = "cancelled"
)

// Collector holds the render manager metrics.
type Collector struct {
	batchesDispatched prometheus.Counter
	batchesFinished   *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	runningBatches    prometheus.Gauge

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	decodeDropped  prometheus.Counter
	surfaceCrashes prometheus.Counter
	surfaceBuilds  prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a Collector registered on reg.
// A nil reg creates unregistered metrics.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.batchesDispatched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_dispatched_total",
		Help:      "Total number of batches sent to the rendering surface",
	})

	c.batchesFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_finished_total",
			Help:      "Total number of finished batches by outcome",
		},
		[]string{"outcome"},
	)

	c.batchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time from dispatch to completion of a batch",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
	})

	c.runningBatches = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running_batches",
		Help:      "Number of batches currently in flight",
	})

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Formulas served from the image cache",
	})

	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Formulas that required rendering",
	})

	c.decodeDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "result_entries_dropped_total",
		Help:      "Result entries dropped because they could not be decoded",
	})

	c.surfaceCrashes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surface_crashes_total",
		Help:      "Rendering surface terminations",
	})

	c.surfaceBuilds = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surface_builds_total",
		Help:      "Rendering surface builds, including rebuilds after a crash",
	})

	return c
}

// BatchDispatched records a batch handed to the surface.
func (c *Collector) BatchDispatched() {
	c.batchesDispatched.Inc()
}

// BatchFinished records a finished batch. A zero duration skips the histogram
// (batches that never reached the surface).
func (c *Collector) BatchFinished(outcome string, d time.Duration) {
	c.batchesFinished.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.batchDuration.Observe(d.Seconds())
	}
}

// SetRunning records the in-flight batch count.
func (c *Collector) SetRunning(n int) {
	c.runningBatches.Set(float64(n))
}

// CacheLookup records the outcome of a submission's cache lookup.
func (c *Collector) CacheLookup(hits, misses int) {
	c.cacheHits.Add(float64(hits))
	c.cacheMisses.Add(float64(misses))
}

// EntriesDropped records result entries that failed to decode.
func (c *Collector) EntriesDropped(n int) {
	if n > 0 {
		c.decodeDropped.Add(float64(n))
	}
}

// SurfaceCrashed records a surface termination.
func (c *Collector) SurfaceCrashed() {
	c.surfaceCrashes.Inc()
	c.logger.Debug("surface crash recorded")
}

// SurfaceBuilt records a surface build.
func (c *Collector) SurfaceBuilt() {
	c.surfaceBuilds.Inc()
}
