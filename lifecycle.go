package mdlatex

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// surfaceSink forwards surface events to the Manager, tagged with the
// generation of the surface that produced them.
type surfaceSink struct {
	m   *Manager
	gen uint64
}

func (s surfaceSink) Ready()            { s.m.handleReady(s.gen) }
func (s surfaceSink) Result(raw []byte) { s.m.handleResult(raw) }
func (s surfaceSink) Crashed()          { s.m.handleCrash(s.gen) }

// setupSurfaceLocked starts building a new surface generation.
// The factory runs without the lock held.
func (m *Manager) setupSurfaceLocked() {
	m.generation++
	m.state = SurfaceLoading
	m.readySignaled = false
	m.surface = nil

	gen := m.generation
	m.logger.Debug("building rendering surface", zap.Uint64("generation", gen))
	go m.buildSurface(gen)
}

func (m *Manager) buildSurface(gen uint64) {
	s, err := m.newSurface(surfaceSink{m: m, gen: gen})

	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		if s != nil {
			go closeSurface(s, m.logger)
		}
		return
	}

	if err != nil {
		m.logger.Error("rendering surface build failed", zap.Error(err))
		m.state = SurfaceUninitialized
		waiting := m.waiting
		m.waiting = nil
		m.handoffs.Add(1)
		m.mu.Unlock()

		m.completeFromCache(waiting)
		return
	}

	m.surface = s
	m.metrics.SurfaceBuilt()
	var waiting []request
	ready := m.readySignaled
	if ready {
		waiting = m.becomeReadyLocked()
	}
	m.mu.Unlock()

	if ready {
		m.replay(waiting)
	}
}

// handleReady marks the surface ready and replays waiting requests.
func (m *Manager) handleReady(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.closed || m.state != SurfaceLoading {
		m.mu.Unlock()
		return
	}
	if m.surface == nil {
		// Factory has not returned yet.
		m.readySignaled = true
		m.mu.Unlock()
		return
	}
	waiting := m.becomeReadyLocked()
	m.mu.Unlock()

	m.replay(waiting)
}

// becomeReadyLocked marks the surface ready and hands the waiting requests
// to the caller, which must pass them to replay after releasing mu.
func (m *Manager) becomeReadyLocked() []request {
	m.state = SurfaceReady
	m.readySignaled = false

	waiting := m.waiting
	m.waiting = nil
	m.handoffs.Add(1)

	m.logger.Info("rendering surface ready",
		zap.Uint64("generation", m.generation),
		zap.Int("replayed", len(waiting)))
	return waiting
}

// handleCrash collects all outstanding work, rebuilds the surface and
// replays the work once the new surface is ready. No completion fires.
func (m *Manager) handleCrash(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.closed {
		return
	}

	m.metrics.SurfaceCrashed()
	recovered := m.drainLocked()
	m.state = SurfaceCrashed

	m.logger.Warn("rendering surface crashed, rebuilding",
		zap.Uint64("generation", gen),
		zap.Int("recovered", len(recovered)))

	m.discardSurfaceLocked()
	m.setupSurfaceLocked()
	m.waiting = recovered
}

// discardSurfaceLocked detaches the current surface and closes it in the
// background. Events from it are ignored from now on.
func (m *Manager) discardSurfaceLocked() {
	old := m.surface
	m.surface = nil
	m.generation++
	m.readySignaled = false
	if old != nil {
		go closeSurface(old, m.logger)
	}
}

func closeSurface(s Surface, logger *zap.Logger) {
	if err := s.Close(); err != nil {
		logger.Debug("closing rendering surface", zap.Error(err))
	}
}

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
