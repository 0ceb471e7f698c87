// Package pipeline turns Markdown with LaTeX formulas into HTML.
//
// Stages:
//   - preprocessing (line normalization, ==highlight== syntax, multi-line
//     $$ blocks joined onto one line)
//   - formula extraction and HTML conversion via goldmark with a math
//     extension that renders $...$ and $$...$$ as images
//   - CSS injection into the finished document
//
// Rendering formulas to images is done by the caller (the root render
// manager); this package only consumes the resulting image URIs.
package pipeline
