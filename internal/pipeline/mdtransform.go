package pipeline

import (
	"context"
	"regexp"
	"strings"
)

// Highlight placeholders use Unicode Private Use Area characters so they
// pass through goldmark unchanged (no WithUnsafe needed).
const (
	MarkStartPlaceholder = "\uE000"
	MarkEndPlaceholder   = "\uE001"
)

var (
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// ==text==, not spanning lines or formulas.
	highlightPattern = regexp.MustCompile(`==([^=$\n]+?)==`)

	// A $$ fence on its own line, the formula, and the closing fence.
	displayMathBlock = regexp.MustCompile(`(?m)^[ \t]*\$\$[ \t]*\n((?:.*\n)*?)[ \t]*\$\$[ \t]*$`)
)

// MarkdownPreprocessor defines the contract for markdown preprocessing.
type MarkdownPreprocessor interface {
	PreprocessMarkdown(ctx context.Context, content string) string
}

// CommonMarkPreprocessor applies transformations before goldmark conversion.
type CommonMarkPreprocessor struct{}

// PreprocessMarkdown applies all transformations to prepare Markdown for conversion.
func (p *CommonMarkPreprocessor) PreprocessMarkdown(ctx context.Context, content string) string {
	if ctx.Err() != nil {
		return content
	}

	content = normalizeLineEndings(content)
	content = joinDisplayMath(content)
	content = convertHighlights(content)
	content = compressBlankLines(content)
	return content
}

var _ MarkdownPreprocessor = (*CommonMarkPreprocessor)(nil)

func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

func compressBlankLines(content string) string {
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

// joinDisplayMath rewrites fenced display formulas
//
//	$$
//	a + b
//	$$
//
// to the single-line form $$a + b$$ understood by the math parser.
func joinDisplayMath(content string) string {
	return displayMathBlock.ReplaceAllStringFunc(content, func(block string) string {
		m := displayMathBlock.FindStringSubmatch(block)
		lines := strings.Fields(strings.ReplaceAll(m[1], "\n", " "))
		if len(lines) == 0 {
			return block
		}
		return "$$" + strings.Join(lines, " ") + "$$"
	})
}

// convertHighlights transforms ==text== to placeholder markers, turned into
// <mark> tags by ConvertMarkPlaceholders after conversion.
func convertHighlights(content string) string {
	return highlightPattern.ReplaceAllString(content, MarkStartPlaceholder+"$1"+MarkEndPlaceholder)
}

// ConvertMarkPlaceholders converts placeholder markers to <mark> tags.
func ConvertMarkPlaceholders(content string) string {
	return strings.ReplaceAll(
		strings.ReplaceAll(content, MarkStartPlaceholder, "<mark>"),
		MarkEndPlaceholder, "</mark>",
	)
}
