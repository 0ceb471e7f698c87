package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/fileutil"
)

// firstHeadingPattern matches the first level-1 ATX heading.
var firstHeadingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// runMarkdown converts one markdown file (or stdin with "-") to HTML with
// every formula embedded as an image.
func runMarkdown(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseMarkdownFlags(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if len(positional) == 0 {
		return fmt.Errorf("%w: markdown file or \"-\" for stdin", ErrNoInput)
	}
	if len(positional) > 1 {
		return fmt.Errorf("%w: %s", ErrUnexpectedArgs, strings.Join(positional[1:], " "))
	}
	input := positional[0]

	content, err := readMarkdown(input, env.Stdin)
	if err != nil {
		return err
	}

	a, err := newApp(&flags.common, &flags.renderer, env, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := mdlatex.MarkdownOptions{
		Title:          resolveTitle(flags.title, content, input),
		Style:          firstNonEmpty(flags.style, a.cfg.Markdown.Style),
		HighlightStyle: firstNonEmpty(flags.highlightStyle, a.cfg.Markdown.HighlightStyle),
		AssetsDir:      a.cfg.Assets.BasePath,
	}
	renderCtx, cancel := a.requestContext(ctx, flags.timeout)
	html, err := mdlatex.RenderMarkdown(renderCtx, a.manager, content, opts)
	cancel()
	if err != nil {
		return fmt.Errorf("converting %s: %w", input, a.renderFailure(err))
	}

	output := resolveHTMLOutput(flags.output, input)
	if output == "-" {
		_, err := io.WriteString(env.Stdout, html)
		return err
	}
	if err := fileutil.WriteFileAtomic(output, []byte(html), filePermissions); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteHTML, output, err)
	}
	if !flags.common.quiet {
		fmt.Fprintf(env.Stdout, "%s -> %s\n", input, output)
	}
	return nil
}

// readMarkdown reads the input file, or r when input is "-".
func readMarkdown(input string, r io.Reader) (string, error) {
	if input == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("%w: stdin: %w", ErrReadMarkdown, err)
		}
		return string(data), nil
	}

	if err := validateMarkdownExtension(input); err != nil {
		return "", err
	}
	data, err := os.ReadFile(input) // #nosec G304 -- input path is user-provided
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadMarkdown, err)
	}
	return string(data), nil
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	ext := filepath.Ext(path)
	if ext != ".md" && ext != ".markdown" {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, ext)
	}
	return nil
}

// resolveTitle picks the flag, then the first # heading, then the file name.
func resolveTitle(flagTitle, markdown, input string) string {
	if flagTitle != "" {
		return flagTitle
	}
	if matches := firstHeadingPattern.FindStringSubmatch(markdown); len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	if input == "-" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

// resolveHTMLOutput returns the output path: the flag value, stdout for
// stdin input, or the input path with an .html extension.
func resolveHTMLOutput(flagOutput, input string) string {
	if flagOutput != "" {
		return flagOutput
	}
	if input == "-" {
		return "-"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".html"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
