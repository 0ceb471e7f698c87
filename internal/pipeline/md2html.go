package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// htmlTemplate wraps Goldmark's fragment output in a complete HTML5 document.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s
</body>
</html>`

// HTMLConverter abstracts Markdown to HTML conversion.
type HTMLConverter interface {
	// Formulas lists the distinct formulas of content in document order.
	Formulas(content string) []string
	// ToHTML renders content as an HTML5 document. images maps formulas to
	// image URIs; formulas without an entry render as code.
	ToHTML(ctx context.Context, content string, images map[string]string) (string, error)
}

// GoldmarkConverter converts Markdown to HTML using goldmark (pure Go).
type GoldmarkConverter struct {
	md    goldmark.Markdown
	title string
}

// NewGoldmarkConverter creates a GoldmarkConverter with GFM extensions,
// math formulas and syntax highlighting.
func NewGoldmarkConverter() *GoldmarkConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			MathExtension,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldhtml.WithXHTML(),
		),
	)
	return &GoldmarkConverter{md: md, title: "Document"}
}

// WithTitle returns a copy of c that uses title for the document <title>.
func (c *GoldmarkConverter) WithTitle(title string) *GoldmarkConverter {
	cp := *c
	cp.title = title
	return &cp
}

func (c *GoldmarkConverter) parse(source []byte) ast.Node {
	return c.md.Parser().Parse(text.NewReader(source))
}

// Formulas lists the distinct formulas of content in document order.
// Formulas inside code spans and code blocks are not included.
func (c *GoldmarkConverter) Formulas(content string) []string {
	nodes := collectMath(c.parse([]byte(content)))

	seen := make(map[string]struct{}, len(nodes))
	formulas := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.Formula]; ok {
			continue
		}
		seen[n.Formula] = struct{}{}
		formulas = append(formulas, n.Formula)
	}
	return formulas
}

// ToHTML converts Markdown content to a standalone HTML5 document.
// Goldmark has no context support, so conversion runs in a goroutine and
// ctx is honored while waiting.
func (c *GoldmarkConverter) ToHTML(ctx context.Context, content string, images map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		source := []byte(content)
		doc := c.parse(source)
		for _, n := range collectMath(doc) {
			n.Src = images[n.Formula]
		}

		var buf bytes.Buffer
		if err := c.md.Renderer().Render(&buf, source, doc); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		body := ConvertMarkPlaceholders(buf.String())
		done <- result{html: fmt.Sprintf(htmlTemplate, html.EscapeString(c.title), body)}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// Compile-time interface check.
var _ HTMLConverter = (*GoldmarkConverter)(nil)
