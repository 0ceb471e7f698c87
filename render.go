package mdlatex

import (
	"context"
	"fmt"

	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/pipeline"
)

// Render submits formulas and waits for the images.
//
// When ctx ends first, the batch is cancelled (its completion never runs) and
// ctx.Err() is returned. A request still waiting for the surface is not
// cancellable; its result is discarded.
func (m *Manager) Render(ctx context.Context, formulas []string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan []Image, 1)
	batchID, err := m.Submit(formulas, func(images []Image) {
		done <- images
	})
	if err != nil {
		return nil, err
	}

	select {
	case images := <-done:
		return images, nil
	case <-ctx.Done():
		if batchID != "" {
			m.CancelBatch(batchID)
		}
		return nil, ctx.Err()
	}
}

// MarkdownOptions configures RenderMarkdown.
type MarkdownOptions struct {
	// Title is the document <title>. Defaults to "Document".
	Title string

	// Style names the stylesheet (styles/{name}.css). Defaults to "github".
	// "none" disables the stylesheet.
	Style string

	// HighlightStyle names the chroma style for code blocks.
	// Defaults to "github". "none" disables it.
	HighlightStyle string

	// AssetsDir overrides embedded styles with {AssetsDir}/styles/{name}.css.
	AssetsDir string
}

const noStyle = "none"

// RenderMarkdown converts markdown to a standalone HTML document in which
// every $...$ and $$...$$ formula is an embedded image rendered by m.
// Formulas that fail to render appear as code.
func RenderMarkdown(ctx context.Context, m *Manager, markdown string, opts MarkdownOptions) (string, error) {
	conv := pipeline.NewGoldmarkConverter()
	if opts.Title != "" {
		conv = conv.WithTitle(opts.Title)
	}

	source := (&pipeline.CommonMarkPreprocessor{}).PreprocessMarkdown(ctx, markdown)

	images := make(map[string]string)
	if formulas := conv.Formulas(source); len(formulas) > 0 {
		rendered, err := m.Render(ctx, formulas)
		if err != nil {
			return "", err
		}
		for i, img := range rendered {
			if uri := img.DataURI(); uri != "" {
				images[formulas[i]] = uri
			}
		}
	}

	html, err := conv.ToHTML(ctx, source, images)
	if err != nil {
		return "", err
	}

	css, err := markdownCSS(opts)
	if err != nil {
		return "", err
	}
	return (&pipeline.CSSInjection{}).InjectCSS(ctx, html, css), nil
}

// markdownCSS assembles the document stylesheet and highlight rules.
func markdownCSS(opts MarkdownOptions) (string, error) {
	var css string

	styleName := opts.Style
	if styleName == "" {
		styleName = assets.DefaultStyleName
	}
	if styleName != noStyle {
		resolver, err := assets.NewAssetResolver(opts.AssetsDir)
		if err != nil {
			return "", err
		}
		style, err := resolver.LoadStyle(styleName)
		if err != nil {
			return "", fmt.Errorf("loading style: %w", err)
		}
		css = style
	}

	highlight := opts.HighlightStyle
	if highlight == "" {
		highlight = "github"
	}
	if highlight != noStyle {
		rules, err := pipeline.HighlightCSS(highlight)
		if err != nil {
			return "", err
		}
		css += "\n" + rules
	}
	return css, nil
}
