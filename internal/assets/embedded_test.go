package assets

import (
	"errors"
	"strings"
	"testing"
)

func TestEmbeddedLoader_LoadStyle(t *testing.T) {
	t.Parallel()

	loader := NewEmbeddedLoader()

	tests := []struct {
		name        string
		styleName   string
		wantErr     error
		wantContain string
	}{
		{name: "loads default style", styleName: DefaultStyleName, wantContain: "math-display"},
		{name: "loads plain style", styleName: "plain", wantContain: "font-family"},
		{name: "nonexistent", styleName: "nonexistent-style-xyz", wantErr: ErrStyleNotFound},
		{name: "empty name", styleName: "", wantErr: ErrInvalidAssetName},
		{name: "path traversal", styleName: "../secret", wantErr: ErrInvalidAssetName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := loader.LoadStyle(tt.styleName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LoadStyle(%q) error = %v, want %v", tt.styleName, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadStyle(%q) unexpected error: %v", tt.styleName, err)
			}
			if !strings.Contains(got, tt.wantContain) {
				t.Errorf("LoadStyle(%q) should contain %q", tt.styleName, tt.wantContain)
			}
		})
	}
}

func TestEmbeddedLoader_LoadSurface(t *testing.T) {
	t.Parallel()

	loader := NewEmbeddedLoader()

	t.Run("default surface defines the page contract", func(t *testing.T) {
		t.Parallel()

		got, err := loader.LoadSurface(DefaultSurfaceName)
		if err != nil {
			t.Fatalf("LoadSurface() error = %v", err)
		}
		for _, want := range []string{
			"function renderFormulasBatch(batchId, payload, scale)",
			"window.latexReadyHandler(",
			"window.latexResultHandler(",
			"{{.MathJaxURL}}",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("LoadSurface() missing %q", want)
			}
		}
	})

	t.Run("nonexistent", func(t *testing.T) {
		t.Parallel()

		_, err := loader.LoadSurface("katex")
		if !errors.Is(err, ErrSurfaceNotFound) {
			t.Errorf("LoadSurface() error = %v, want ErrSurfaceNotFound", err)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		t.Parallel()

		_, err := loader.LoadSurface("mathjax.html")
		if !errors.Is(err, ErrInvalidAssetName) {
			t.Errorf("LoadSurface() error = %v, want ErrInvalidAssetName", err)
		}
	})
}

func TestEmbeddedStyles(t *testing.T) {
	t.Parallel()

	got := EmbeddedStyles()
	want := []string{"github", "plain"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("EmbeddedStyles() = %v, want %v", got, want)
	}
}
