package mdlatex

import (
	"errors"
	"strings"
	"testing"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		formula string
		scale   int
		want    string
	}{
		{formula: "x^2", scale: 2, want: "x^2_scale2"},
		{formula: `\frac{a}{b}`, scale: 3, want: `\frac{a}{b}_scale3`},
		{formula: "", scale: 1, want: "_scale1"},
	}

	for _, tt := range tests {
		if got := CacheKey(tt.formula, tt.scale); got != tt.want {
			t.Errorf("CacheKey(%q, %d) = %q, want %q", tt.formula, tt.scale, got, tt.want)
		}
	}
}

func TestNewImage(t *testing.T) {
	t.Parallel()

	t.Run("png", func(t *testing.T) {
		t.Parallel()

		img, err := NewImage(pngFor("abc"))
		if err != nil {
			t.Fatalf("NewImage() error = %v", err)
		}
		if img.Format != "png" || img.Width != 4 || img.Height != 1 {
			t.Errorf("NewImage() = %s %dx%d, want png 4x1", img.Format, img.Width, img.Height)
		}
		if img.IsPlaceholder() {
			t.Error("IsPlaceholder() = true for decoded image")
		}
		decoded, err := img.Decode()
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if decoded.Bounds().Dx() != 4 {
			t.Errorf("Decode() width = %d, want 4", decoded.Bounds().Dx())
		}
	})

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrEmptyImageData},
		{name: "garbage", data: []byte("hello"), wantErr: ErrImageDecode},
		{name: "truncated png", data: pngFor("abc")[:10], wantErr: ErrImageDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewImage(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewImage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImage_Placeholder(t *testing.T) {
	t.Parallel()

	var img Image
	if !img.IsPlaceholder() {
		t.Error("zero Image should be a placeholder")
	}
	if img.DataURI() != "" {
		t.Error("placeholder DataURI should be empty")
	}
	if _, err := img.Decode(); !errors.Is(err, ErrEmptyImageData) {
		t.Errorf("placeholder Decode() error = %v, want ErrEmptyImageData", err)
	}
}

func TestImage_DataURIRoundTrip(t *testing.T) {
	t.Parallel()

	img, err := NewImage(pngFor("xy"))
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	uri := img.DataURI()
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("DataURI() = %q", uri)
	}

	back, err := decodeBase64Image(uri)
	if err != nil {
		t.Fatalf("decodeBase64Image() error = %v", err)
	}
	if back.Width != img.Width || string(back.Data) != string(img.Data) {
		t.Error("DataURI round-trip changed the image")
	}
}
