package pipeline

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMath is the ast.NodeKind of Math nodes.
var KindMath = ast.NewNodeKind("Math")

// Math is an inline LaTeX formula delimited by $...$ or $$...$$.
type Math struct {
	ast.BaseInline

	Formula string
	Display bool

	// Src is the image URI the formula renders as. Empty renders the
	// formula source as code.
	Src string
}

// Kind implements ast.Node.
func (n *Math) Kind() ast.NodeKind {
	return KindMath
}

// Dump implements ast.Node.
func (n *Math) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Formula": n.Formula,
		"Display": boolString(n.Display),
	}, nil)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// mathParser parses $...$ and $$...$$ spans within one line.
//
// Inline delimiters follow the pandoc rules: the opening $ must be followed
// by a non-space, the closing $ must be preceded by a non-space and not be
// followed by a digit. "$5 and $10" is therefore plain text.
type mathParser struct{}

func (p *mathParser) Trigger() []byte {
	return []byte{'$'}
}

func (p *mathParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 2 || line[0] != '$' {
		return nil
	}

	if line[1] == '$' {
		end := bytes.Index(line[2:], []byte("$$"))
		if end < 0 {
			return nil
		}
		formula := bytes.TrimSpace(line[2 : 2+end])
		if len(formula) == 0 {
			return nil
		}
		block.Advance(2 + end + 2)
		return &Math{Formula: string(formula), Display: true}
	}

	if isSpace(line[1]) {
		return nil
	}
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++ // skip escaped character
		case '$':
			if isSpace(line[i-1]) {
				continue
			}
			if i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
				continue
			}
			block.Advance(i + 1)
			return &Math{Formula: string(line[1:i])}
		}
	}
	return nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// mathRenderer renders Math nodes as images, or as code when no image is set.
type mathRenderer struct{}

func (r *mathRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMath, r.renderMath)
}

func (r *mathRenderer) renderMath(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Math)

	if n.Src == "" {
		delim := "$"
		if n.Display {
			delim = "$$"
		}
		_, _ = w.WriteString(`<code class="math math-missing">`)
		_, _ = w.Write(util.EscapeHTML([]byte(delim + n.Formula + delim)))
		_, _ = w.WriteString(`</code>`)
		return ast.WalkSkipChildren, nil
	}

	class := "math math-inline"
	if n.Display {
		_, _ = w.WriteString(`<span class="math-display">`)
		class = "math"
	}
	_, _ = w.WriteString(`<img class="` + class + `" src="`)
	_, _ = w.Write(util.EscapeHTML([]byte(n.Src)))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML([]byte(n.Formula)))
	_, _ = w.WriteString(`" />`)
	if n.Display {
		_, _ = w.WriteString(`</span>`)
	}
	return ast.WalkSkipChildren, nil
}

type mathExtension struct{}

// MathExtension adds $...$ and $$...$$ formulas to a goldmark.Markdown.
var MathExtension goldmark.Extender = &mathExtension{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&mathParser{}, 150),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&mathRenderer{}, 500),
	))
}

// collectMath returns the Math nodes of doc in document order.
func collectMath(doc ast.Node) []*Math {
	var nodes []*Math
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if m, ok := n.(*Math); ok && entering {
			nodes = append(nodes, m)
		}
		return ast.WalkContinue, nil
	})
	return nodes
}
