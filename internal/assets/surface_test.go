package assets

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderSurfacePage(t *testing.T) {
	t.Parallel()

	src, err := NewEmbeddedLoader().LoadSurface(DefaultSurfaceName)
	if err != nil {
		t.Fatalf("LoadSurface() error = %v", err)
	}

	tests := []struct {
		name    string
		page    SurfacePage
		wantSrc string
	}{
		{name: "default engine", page: SurfacePage{}, wantSrc: DefaultMathJaxURL},
		{name: "offline engine", page: SurfacePage{MathJaxURL: "file:///opt/mathjax/tex-svg.js"}, wantSrc: "file:///opt/mathjax/tex-svg.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RenderSurfacePage(src, tt.page)
			if err != nil {
				t.Fatalf("RenderSurfacePage() error = %v", err)
			}
			if !strings.Contains(got, `src="`+tt.wantSrc+`"`) {
				t.Errorf("RenderSurfacePage() missing script src %q", tt.wantSrc)
			}
		})
	}
}

func TestRenderSurfacePage_BadTemplate(t *testing.T) {
	t.Parallel()

	_, err := RenderSurfacePage("<script src=\"{{.MathJaxURL\"></script>", SurfacePage{})
	if !errors.Is(err, ErrSurfaceTemplate) {
		t.Errorf("RenderSurfacePage() error = %v, want ErrSurfaceTemplate", err)
	}
}
