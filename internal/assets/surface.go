package assets

import (
	"bytes"
	"fmt"
	"html/template"
)

// DefaultMathJaxURL is the MathJax build loaded by the default surface page.
const DefaultMathJaxURL = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-svg.js"

// SurfacePage is the data a surface page template is executed with.
type SurfacePage struct {
	// MathJaxURL locates the math engine script. May be a file:// URL for
	// offline use.
	MathJaxURL string
}

// RenderSurfacePage executes a surface page template.
func RenderSurfacePage(src string, page SurfacePage) (string, error) {
	tmpl, err := template.New("surface").Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSurfaceTemplate, err)
	}

	mathJax := page.MathJaxURL
	if mathJax == "" {
		mathJax = DefaultMathJaxURL
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		MathJaxURL template.URL
	}{
		MathJaxURL: template.URL(mathJax), // #nosec G203 -- operator-configured
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSurfaceTemplate, err)
	}
	return buf.String(), nil
}
