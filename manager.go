package mdlatex

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alnah/go-mdlatex/internal/imagecache"
	"github.com/alnah/go-mdlatex/internal/metrics"
)

// Completion receives one image per submitted formula, in submission order.
// Formulas that could not be rendered are placeholders (Image.IsPlaceholder).
type Completion func(images []Image)

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	State   SurfaceState
	Running int // batches in flight on the surface
	Queued  int // batches waiting for a concurrency slot
	Waiting int // requests waiting for the surface to become ready
	Batches int // batches alive (queued or in flight)
}

// request is one Submit call.
type request struct {
	formulas   []string
	completion Completion
}

// lookup is a request resolved against the cache: hits and placeholders in
// request order, plus the formulas that missed.
type lookup struct {
	snapshot []Image
	pending  []string
}

// batch is the unit of work sent to the surface.
type batch struct {
	id       string
	seq      uint64
	req      request
	snapshot []Image // cache hits and placeholders at submit time, request order
	pending  []string
	timer    *time.Timer

	inFlight     bool
	dispatchedAt time.Time
}

// metricsRecorder is implemented by *metrics.Collector.
type metricsRecorder interface {
	BatchDispatched()
	BatchFinished(outcome string, d time.Duration)
	SetRunning(n int)
	CacheLookup(hits, misses int)
	EntriesDropped(n int)
	SurfaceCrashed()
	SurfaceBuilt()
}

// Manager batches LaTeX render requests onto one rendering surface and
// caches the resulting bitmaps.
//
// All scheduler state is guarded by mu. Surface calls, cache reads and
// completion callbacks never run while mu is held.
type Manager struct {
	cfg        managerConfig
	cache      ImageCache
	newSurface SurfaceFactory
	dispatcher Dispatcher
	ownedDisp  *SerialDispatcher
	logger     *zap.Logger
	metrics    metricsRecorder

	mu            sync.RWMutex
	state         SurfaceState
	surface       Surface
	generation    uint64
	readySignaled bool
	batches       map[string]*batch
	taskQueue     []string
	waiting       []request
	running       int
	seq           uint64
	closed        bool

	// handoffs counts requests taken out of the scheduler state for cache
	// reads. Close waits for them before stopping the dispatcher.
	handoffs sync.WaitGroup
}

// NewManager creates a Manager and starts building its rendering surface.
// Call Close to release the surface and stop callback delivery.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg: managerConfig{
			maxConcurrent: DefaultMaxConcurrentBatches,
			batchTimeout:  DefaultBatchTimeout,
			scale:         DefaultScale,
		},
		batches: make(map[string]*batch),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.With(zap.String("component", "render_manager"))

	if m.cache == nil {
		mem, err := imagecache.NewMemory(imagecache.DefaultMemoryEntries)
		if err != nil {
			return nil, err
		}
		m.cache = mem
	}

	if m.dispatcher == nil {
		m.ownedDisp = NewSerialDispatcher()
		m.dispatcher = m.ownedDisp
	}

	if m.cfg.registerer != nil {
		m.metrics = metrics.NewCollector(metricsNamespace, m.cfg.registerer, m.logger)
	} else {
		m.metrics = nopMetrics{}
	}

	if m.newSurface == nil {
		m.newSurface = NewRodSurfaceFactory(m.cfg.rod, m.logger)
	}

	m.mu.Lock()
	m.setupSurfaceLocked()
	m.mu.Unlock()

	return m, nil
}

// Submit queues formulas for rendering. completion fires exactly once on the
// dispatcher with len(formulas) images, unless the batch is cancelled.
//
// The returned batch id is empty when no batch was created: either every
// formula was cached, or the surface is not ready yet and the request waits
// (it gets a batch id when replayed).
func (m *Manager) Submit(formulas []string, completion Completion) (string, error) {
	if len(formulas) == 0 {
		return "", ErrNoFormulas
	}
	if completion == nil {
		return "", ErrNilCompletion
	}

	req := request{formulas: slices.Clone(formulas), completion: completion}

	for {
		m.mu.RLock()
		closed, ready := m.closed, m.state == SurfaceReady
		m.mu.RUnlock()
		if closed {
			return "", ErrManagerClosed
		}

		var res *lookup
		if ready {
			l := m.lookup(req.formulas)
			res = &l
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return "", ErrManagerClosed
		}
		if res == nil && m.state == SurfaceReady {
			// Became ready meanwhile; read the cache first.
			m.mu.Unlock()
			continue
		}
		id := m.submitLocked(req, res)
		m.mu.Unlock()
		return id, nil
	}
}

// CancelBatch drops a batch without invoking its completion.
// A cancelled in-flight batch frees its concurrency slot. Returns false if
// the batch is unknown or already finished.
func (m *Manager) CancelBatch(batchID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[batchID]
	if !ok {
		return false
	}
	m.finishLocked(b, nil, metrics.OutcomeCancelled)
	m.tryExecuteNextLocked()

	m.logger.Debug("batch cancelled", zap.String("batch_id", batchID))
	return true
}

// HandleMemoryPressure drops the cache's memory tier. When the scheduler is
// idle it also tears down the surface; the next Submit rebuilds it.
func (m *Manager) HandleMemoryPressure() {
	m.cache.ClearMemory()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.state == SurfaceUninitialized {
		return
	}
	if m.running > 0 || len(m.taskQueue) > 0 || len(m.waiting) > 0 {
		m.logger.Debug("memory pressure: surface kept, work outstanding",
			zap.Int("running", m.running),
			zap.Int("queued", len(m.taskQueue)),
			zap.Int("waiting", len(m.waiting)))
		return
	}

	m.logger.Info("memory pressure: releasing rendering surface")
	m.discardSurfaceLocked()
	m.state = SurfaceUninitialized
}

// Stats returns a snapshot of the scheduler state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		State:   m.state,
		Running: m.running,
		Queued:  len(m.taskQueue),
		Waiting: len(m.waiting),
		Batches: len(m.batches),
	}
}

// Close stops the Manager. Outstanding requests complete with their cached
// images and placeholders, the surface is closed and the default dispatcher
// drains before Close returns.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	outstanding := m.drainLocked()
	m.handoffs.Add(1)

	old := m.surface
	m.surface = nil
	m.generation++
	m.state = SurfaceUninitialized
	m.mu.Unlock()

	m.completeFromCache(outstanding)
	m.handoffs.Wait()

	var errs []error
	if old != nil {
		if err := old.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.ownedDisp != nil {
		m.ownedDisp.Close()
	}

	m.logger.Info("render manager closed", zap.Int("outstanding", len(outstanding)))
	return errors.Join(errs...)
}

// submitLocked routes a request: wait for the surface, answer from cache, or
// create a batch. res must be non-nil when the surface is ready. Returns the
// batch id if one was created.
func (m *Manager) submitLocked(req request, res *lookup) string {
	if m.state != SurfaceReady {
		m.waiting = append(m.waiting, req)
		if m.state == SurfaceUninitialized {
			m.setupSurfaceLocked()
		}
		m.logger.Debug("surface not ready, request waiting",
			zap.Stringer("state", m.state),
			zap.Int("waiting", len(m.waiting)))
		return ""
	}

	snapshot, pending := res.snapshot, res.pending
	m.metrics.CacheLookup(len(req.formulas)-len(pending), len(pending))

	if len(pending) == 0 {
		m.deliver(req.completion, snapshot)
		return ""
	}

	m.seq++
	b := &batch{
		id:       "batch_" + uuid.NewString(),
		seq:      m.seq,
		req:      req,
		snapshot: snapshot,
		pending:  pending,
	}
	m.batches[b.id] = b
	m.taskQueue = append(m.taskQueue, b.id)

	m.logger.Debug("batch queued",
		zap.String("batch_id", b.id),
		zap.Int("formulas", len(req.formulas)),
		zap.Int("pending", len(pending)))

	m.tryExecuteNextLocked()
	return b.id
}

// lookup resolves formulas against the cache. Call it without mu held.
func (m *Manager) lookup(formulas []string) lookup {
	l := lookup{snapshot: placeholders(len(formulas))}
	for i, f := range formulas {
		if img, ok := m.cachedImage(f); ok {
			l.snapshot[i] = img
			continue
		}
		l.pending = append(l.pending, f)
	}
	return l
}

// replay resubmits requests that waited for the surface, in order. The
// caller has registered the handoff.
func (m *Manager) replay(reqs []request) {
	defer m.handoffs.Done()

	resolved := make([]lookup, len(reqs))
	for i, req := range reqs {
		resolved[i] = m.lookup(req.formulas)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, req := range reqs {
		if m.closed {
			m.deliver(req.completion, resolved[i].snapshot)
			continue
		}
		m.submitLocked(req, &resolved[i])
	}
}

// completeFromCache delivers each request with its cache hits and
// placeholders. The caller has registered the handoff.
func (m *Manager) completeFromCache(reqs []request) {
	defer m.handoffs.Done()

	for _, req := range reqs {
		m.deliver(req.completion, m.lookup(req.formulas).snapshot)
	}
}

// cachedImage reads and validates a cache entry. Corrupt entries are misses.
func (m *Manager) cachedImage(formula string) (Image, bool) {
	data, ok := m.cache.Get(CacheKey(formula, m.cfg.scale))
	if !ok {
		return Image{}, false
	}
	img, err := NewImage(data)
	if err != nil {
		m.logger.Warn("ignoring corrupt cache entry", zap.String("formula", formula), zap.Error(err))
		return Image{}, false
	}
	return img, true
}

// tryExecuteNextLocked admits queued batches while concurrency slots are free.
func (m *Manager) tryExecuteNextLocked() {
	for m.running < m.cfg.maxConcurrent && len(m.taskQueue) > 0 {
		if m.state != SurfaceReady || m.surface == nil {
			return
		}

		id := m.taskQueue[0]
		m.taskQueue = m.taskQueue[1:]

		b, ok := m.batches[id]
		if !ok {
			continue
		}

		m.running++
		m.metrics.SetRunning(m.running)
		b.inFlight = true
		b.dispatchedAt = time.Now()

		payload, err := encodeBatchPayload(b.pending)
		if err != nil {
			m.logger.Error("batch payload encoding failed", zap.String("batch_id", id), zap.Error(err))
			m.finishLocked(b, b.snapshot, metrics.OutcomeEncodeFailure)
			continue
		}

		b.timer = time.AfterFunc(m.cfg.batchTimeout, func() { m.handleTimeout(id) })
		m.metrics.BatchDispatched()

		m.logger.Debug("batch dispatched",
			zap.String("batch_id", id),
			zap.Int("pending", len(b.pending)),
			zap.Int("running", m.running))

		go m.dispatch(m.surface, id, payload)
	}
}

// dispatch hands a batch to the surface. A synchronous failure finishes the
// batch with placeholders.
func (m *Manager) dispatch(s Surface, id, payload string) {
	ctx, cancel := contextWithTimeout(m.cfg.batchTimeout)
	defer cancel()

	err := s.RenderBatch(ctx, id, payload, m.cfg.scale)
	if err == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[id]
	if !ok || !b.inFlight {
		return
	}
	m.logger.Warn("batch dispatch failed", zap.String("batch_id", id), zap.Error(err))
	m.finishLocked(b, b.snapshot, metrics.OutcomeDispatchFailure)
	m.tryExecuteNextLocked()
}

// handleTimeout finishes an in-flight batch that got no result in time.
func (m *Manager) handleTimeout(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[id]
	if !ok || !b.inFlight {
		return
	}
	m.logger.Warn("batch timed out",
		zap.String("batch_id", id),
		zap.Duration("timeout", m.cfg.batchTimeout))
	m.finishLocked(b, b.snapshot, metrics.OutcomeTimeout)
	m.tryExecuteNextLocked()
}

// handleResult ingests a surface result: decoded images go to the cache and
// the batch result is re-derived from the cache in request order.
func (m *Manager) handleResult(raw []byte) {
	res, err := decodeBatchResult(raw)
	if err != nil {
		m.logger.Warn("discarding surface message", zap.Error(err))
		return
	}
	m.metrics.EntriesDropped(res.Dropped)

	fresh := make(map[string]Image, len(res.Rendered))
	for _, r := range res.Rendered {
		m.cache.Put(CacheKey(r.Formula, m.cfg.scale), r.Image.Data)
		fresh[r.Formula] = r.Image
	}

	m.mu.RLock()
	b, ok := m.batches[res.BatchID]
	inFlight := ok && b.inFlight
	m.mu.RUnlock()
	if !inFlight {
		m.logger.Debug("result for unknown batch", zap.String("batch_id", res.BatchID))
		return
	}

	// formulas and snapshot are never mutated after the batch is created.
	images := slices.Clone(b.snapshot)
	for i, f := range b.req.formulas {
		if !images[i].IsPlaceholder() {
			continue
		}
		if img, ok := m.cachedImage(f); ok {
			images[i] = img
		} else if img, ok := fresh[f]; ok {
			images[i] = img
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Timed out, cancelled or drained while the cache was read.
	if m.batches[res.BatchID] != b || !b.inFlight {
		return
	}

	if res.Dropped > 0 {
		m.logger.Warn("batch result had undecodable entries",
			zap.String("batch_id", res.BatchID),
			zap.Int("dropped", res.Dropped))
	}
	m.finishLocked(b, images, metrics.OutcomeSuccess)
	m.tryExecuteNextLocked()
}

// finishLocked releases a batch and delivers images when non-nil.
// Callers run tryExecuteNextLocked afterwards to backfill the slot.
func (m *Manager) finishLocked(b *batch, images []Image, outcome string) {
	m.cleanupLocked(b.id)

	var elapsed time.Duration
	if b.inFlight {
		m.running = max(0, m.running-1)
		m.metrics.SetRunning(m.running)
		elapsed = time.Since(b.dispatchedAt)
	}
	m.metrics.BatchFinished(outcome, elapsed)

	if images != nil {
		m.deliver(b.req.completion, images)
	}
}

// cleanupLocked removes every trace of a batch. Safe on unknown ids.
func (m *Manager) cleanupLocked(id string) {
	b, ok := m.batches[id]
	if !ok {
		return
	}
	delete(m.batches, id)
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if idx := slices.Index(m.taskQueue, id); idx != -1 {
		m.taskQueue = slices.Delete(m.taskQueue, idx, idx+1)
	}
}

// deliver schedules a completion on the dispatcher.
func (m *Manager) deliver(completion Completion, images []Image) {
	m.dispatcher.Dispatch(func() { completion(images) })
}

// drainLocked clears all scheduler state and returns every outstanding
// request: in-flight batches, then queued batches, then waiting requests.
func (m *Manager) drainLocked() []request {
	all := make([]*batch, 0, len(m.batches))
	for _, b := range m.batches {
		all = append(all, b)
	}
	slices.SortFunc(all, func(a, b *batch) int {
		if a.inFlight != b.inFlight {
			if a.inFlight {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.seq, b.seq)
	})

	reqs := make([]request, 0, len(all)+len(m.waiting))
	for _, b := range all {
		if b.timer != nil {
			b.timer.Stop()
		}
		reqs = append(reqs, b.req)
	}
	reqs = append(reqs, m.waiting...)

	m.batches = make(map[string]*batch)
	m.taskQueue = nil
	m.waiting = nil
	m.running = 0
	m.metrics.SetRunning(0)
	return reqs
}

type nopMetrics struct{}

func (nopMetrics) BatchDispatched()                    {}
func (nopMetrics) BatchFinished(string, time.Duration) {}
func (nopMetrics) SetRunning(int)                      {}
func (nopMetrics) CacheLookup(int, int)                {}
func (nopMetrics) EntriesDropped(int)                  {}
func (nopMetrics) SurfaceCrashed()                     {}
func (nopMetrics) SurfaceBuilt()                       {}

var _ metricsRecorder = (*metrics.Collector)(nil)
