package mdlatex

import "errors"

// Sentinel errors for library operations.
var (
	ErrNoFormulas    = errors.New("formula list cannot be empty")
	ErrNilCompletion = errors.New("completion callback cannot be nil")
	ErrManagerClosed = errors.New("render manager is closed")

	// Rendering surface errors.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load rendering page")
	ErrSurfaceClosed  = errors.New("rendering surface is closed")
	ErrScriptFailed   = errors.New("render script failed")

	// Payload errors.
	ErrPayloadEncode  = errors.New("failed to encode formula payload")
	ErrInvalidPayload = errors.New("invalid batch result payload")

	// Image errors.
	ErrEmptyImageData = errors.New("image data is empty")
	ErrImageDecode    = errors.New("failed to decode image data")
)
