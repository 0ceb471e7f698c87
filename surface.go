package mdlatex

import "context"

// SurfaceState is the lifecycle state of the rendering surface as seen by the Manager.
type SurfaceState int

// Surface states. Batches are dispatched only in SurfaceReady.
const (
	SurfaceUninitialized SurfaceState = iota
	SurfaceLoading
	SurfaceReady
	SurfaceCrashed
)

// String returns the state name.
func (s SurfaceState) String() string {
	switch s {
	case SurfaceUninitialized:
		return "uninitialized"
	case SurfaceLoading:
		return "loading"
	case SurfaceReady:
		return "ready"
	case SurfaceCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Surface is a headless script host that turns formulas into bitmaps.
//
// RenderBatch asks the loaded environment to render one batch. The payload is
// a JSON array of formulas already escaped for embedding in a single-quoted
// script string. RenderBatch returns once the call has been handed to the
// environment; the rendered images arrive later through SurfaceEvents.Result.
type Surface interface {
	RenderBatch(ctx context.Context, batchID, payload string, scale int) error
	Close() error
}

// SurfaceEvents receives the signals posted by a Surface.
// Implementations are safe for concurrent use.
type SurfaceEvents interface {
	// Ready reports that the environment finished loading.
	Ready()
	// Result delivers the raw JSON message for one batch.
	Result(raw []byte)
	// Crashed reports that the surface died and must be rebuilt.
	Crashed()
}

// SurfaceFactory builds a Surface bound to events.
// It must not wait for the environment to load: readiness is signalled
// through events.Ready.
type SurfaceFactory func(events SurfaceEvents) (Surface, error)
