package mdlatex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// pngFor returns a valid PNG whose width encodes the formula length, so
// tests can tell which formula an image belongs to.
func pngFor(formula string) []byte {
	var buf bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, len(formula)+1, 1))
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func dataURIFor(formula string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngFor(formula))
}

// renderCall is one RenderBatch invocation seen by a fakeSurface.
type renderCall struct {
	batchID  string
	formulas []string
	scale    int
}

var payloadUnescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`)

// fakeSurface records render calls. In auto mode it answers each call with
// images for every formula not in fail.
type fakeSurface struct {
	events SurfaceEvents

	mu        sync.Mutex
	calls     []renderCall
	callCh    chan renderCall
	renderErr error
	closed    bool
	auto      bool
	fail      map[string]bool
}

func (s *fakeSurface) RenderBatch(_ context.Context, batchID, payload string, scale int) error {
	var formulas []string
	if err := json.Unmarshal([]byte(payloadUnescaper.Replace(payload)), &formulas); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSurfaceClosed
	}
	if s.renderErr != nil {
		err := s.renderErr
		s.mu.Unlock()
		return err
	}
	call := renderCall{batchID: batchID, formulas: formulas, scale: scale}
	s.calls = append(s.calls, call)
	auto, fail := s.auto, s.fail
	s.mu.Unlock()

	if auto {
		var ok []string
		for _, f := range formulas {
			if !fail[f] {
				ok = append(ok, f)
			}
		}
		go s.events.Result(resultJSON(batchID, reversed(ok)...))
		return nil
	}

	s.callCh <- call
	return nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSurface) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSurface) setRenderErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderErr = err
}

// nextCall waits for the next RenderBatch call.
func (s *fakeSurface) nextCall(t *testing.T) renderCall {
	t.Helper()

	select {
	case c := <-s.callCh:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for RenderBatch")
		return renderCall{}
	}
}

// noCall asserts no RenderBatch call arrives within d.
func (s *fakeSurface) noCall(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case c := <-s.callCh:
		t.Fatalf("unexpected RenderBatch for %v", c.formulas)
	case <-time.After(d):
	}
}

// respond posts a result containing images for formulas.
func (s *fakeSurface) respond(batchID string, formulas ...string) {
	s.events.Result(resultJSON(batchID, formulas...))
}

func resultJSON(batchID string, formulas ...string) []byte {
	msg := batchMessage{BatchID: batchID}
	for _, f := range formulas {
		msg.Results = append(msg.Results, entryMessage{Latex: f, Base64: dataURIFor(f)})
	}
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return data
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// surfaceHarness is a SurfaceFactory that hands out fakeSurfaces.
type surfaceHarness struct {
	built chan *fakeSurface

	mu        sync.Mutex
	surfaces  []*fakeSurface
	buildErrs []error // consumed one per build
	autoReady bool
	auto      bool
	fail      map[string]bool
	gate      chan struct{} // when set, builds block until it is closed
}

func newSurfaceHarness() *surfaceHarness {
	return &surfaceHarness{built: make(chan *fakeSurface, 16)}
}

func (h *surfaceHarness) factory(events SurfaceEvents) (Surface, error) {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate != nil {
		<-gate
	}

	h.mu.Lock()
	if len(h.buildErrs) > 0 {
		err := h.buildErrs[0]
		h.buildErrs = h.buildErrs[1:]
		h.mu.Unlock()
		return nil, err
	}
	s := &fakeSurface{
		events: events,
		callCh: make(chan renderCall, 64),
		auto:   h.auto,
		fail:   h.fail,
	}
	h.surfaces = append(h.surfaces, s)
	autoReady := h.autoReady
	h.mu.Unlock()

	if autoReady {
		events.Ready()
	}
	h.built <- s
	return s, nil
}

func (h *surfaceHarness) builds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.surfaces)
}

// nextSurface waits for the next built surface.
func (h *surfaceHarness) nextSurface(t *testing.T) *fakeSurface {
	t.Helper()

	select {
	case s := <-h.built:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for surface build")
		return nil
	}
}

// readySurface waits for the next surface and signals it ready.
func (h *surfaceHarness) readySurface(t *testing.T, m *Manager) *fakeSurface {
	t.Helper()

	s := h.nextSurface(t)
	s.events.Ready()
	waitFor(t, func() bool { return m.Stats().State == SurfaceReady })
	return s
}

// mapCache is a minimal ImageCache.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	cleared int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

func (c *mapCache) ClearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.cleared++
}

func (c *mapCache) clearedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// forgetfulCache accepts writes but never returns them.
type forgetfulCache struct{}

func (forgetfulCache) Get(string) ([]byte, bool) { return nil, false }
func (forgetfulCache) Put(string, []byte)        {}
func (forgetfulCache) ClearMemory()              {}

// slowCache is a mapCache whose reads take delay, like a remote tier that
// is timing out. Every read key is reported on reads.
type slowCache struct {
	*mapCache
	delay time.Duration
	reads chan string
}

func newSlowCache(delay time.Duration) *slowCache {
	return &slowCache{mapCache: newMapCache(), delay: delay, reads: make(chan string, 1024)}
}

func (c *slowCache) Get(key string) ([]byte, bool) {
	select {
	case c.reads <- key:
	default:
	}
	time.Sleep(c.delay)
	return c.mapCache.Get(key)
}

// forgetReads discards the reads reported so far.
func (c *slowCache) forgetReads() {
	for {
		select {
		case <-c.reads:
		default:
			return
		}
	}
}

// waitForRead waits until key is read.
func (c *slowCache) waitForRead(t *testing.T, key string) {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case k := <-c.reads:
			if k == key {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a read of %q", key)
		}
	}
}

// completionRecorder collects completions for one submission.
type completionRecorder struct {
	mu    sync.Mutex
	calls [][]Image
	ch    chan []Image
}

func newRecorder() *completionRecorder {
	return &completionRecorder{ch: make(chan []Image, 8)}
}

func (r *completionRecorder) complete(images []Image) {
	r.mu.Lock()
	r.calls = append(r.calls, images)
	r.mu.Unlock()
	r.ch <- images
}

func (r *completionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *completionRecorder) wait(t *testing.T) []Image {
	t.Helper()

	select {
	case images := <-r.ch:
		return images
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

func (r *completionRecorder) none(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case images := <-r.ch:
		t.Fatalf("unexpected completion with %d images", len(images))
	case <-time.After(d):
	}
}

// newTestManager builds a Manager on h. The manager is closed at cleanup.
func newTestManager(t *testing.T, h *surfaceHarness, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithSurfaceFactory(h.factory)}, opts...)
	m, err := NewManager(opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// assertImages checks images against the expected formulas; "" expects a
// placeholder.
func assertImages(t *testing.T, images []Image, want ...string) {
	t.Helper()

	if len(images) != len(want) {
		t.Fatalf("got %d images, want %d", len(images), len(want))
	}
	for i, f := range want {
		if f == "" {
			if !images[i].IsPlaceholder() {
				t.Errorf("image[%d] should be a placeholder", i)
			}
			continue
		}
		if images[i].IsPlaceholder() {
			t.Errorf("image[%d] is a placeholder, want %q", i, f)
			continue
		}
		if images[i].Width != len(f)+1 {
			t.Errorf("image[%d] width = %d, want image of %q", i, images[i].Width, f)
		}
	}
}

var errBoom = errors.New("boom")
