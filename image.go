package mdlatex

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strconv"
	"strings"

	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultScale is the raster scale factor used for cache keys and render calls.
const DefaultScale = 2

// Image is one rendered formula bitmap.
// The zero value is the placeholder for a formula that could not be rendered.
type Image struct {
	Data   []byte // encoded bitmap as produced by the rendering surface
	Format string // "png", "jpeg", "gif" or "webp"
	Width  int
	Height int
}

// IsPlaceholder reports whether the image carries no bitmap.
func (i Image) IsPlaceholder() bool {
	return len(i.Data) == 0
}

// Decode decodes the full bitmap.
func (i Image) Decode() (image.Image, error) {
	if i.IsPlaceholder() {
		return nil, ErrEmptyImageData
	}
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return img, nil
}

// DataURI returns the image as a data: URI, or "" for placeholders.
func (i Image) DataURI() string {
	if i.IsPlaceholder() {
		return ""
	}
	return "data:image/" + i.Format + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// CacheKey derives the cache key for a formula at a raster scale.
func CacheKey(formula string, scale int) string {
	return formula + "_scale" + strconv.Itoa(scale)
}

// NewImage validates encoded bitmap bytes by decoding the image header.
func NewImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImageData
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, fmt.Errorf("%w: zero-sized %s", ErrImageDecode, format)
	}
	return Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// decodeBase64Image strips an optional "data:...," prefix, decodes base64
// and validates the bitmap.
func decodeBase64Image(s string) (Image, error) {
	if idx := strings.LastIndexByte(s, ','); idx != -1 {
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, ErrEmptyImageData
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Image{}, fmt.Errorf("%w: base64: %v", ErrImageDecode, err)
	}
	return NewImage(data)
}

// placeholders returns n placeholder images.
func placeholders(n int) []Image {
	return make([]Image, n)
}
