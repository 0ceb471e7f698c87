package mdlatex

import "sync"

// Dispatcher runs completion callbacks on the caller-facing goroutine.
// Dispatch must not run fn synchronously and must not block.
type Dispatcher interface {
	Dispatch(fn func())
}

// SerialDispatcher runs callbacks one at a time, in order, on a single
// dedicated goroutine.
type SerialDispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped chan struct{}
}

// NewSerialDispatcher starts a SerialDispatcher. Call Close to stop it.
func NewSerialDispatcher() *SerialDispatcher {
	d := &SerialDispatcher{stopped: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Dispatch queues fn. Callbacks queued after Close are dropped.
func (d *SerialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

// Close runs the callbacks already queued, then stops the goroutine.
// It must not be called from a callback.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.stopped
}

func (d *SerialDispatcher) loop() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}
