package main

import "errors"

// Sentinel errors for CLI operations.
var (
	ErrUsage              = errors.New("invalid usage")
	ErrUnexpectedArgs     = errors.New("unexpected arguments")
	ErrNoInput            = errors.New("no input specified")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrReadMarkdown       = errors.New("failed to read markdown file")
	ErrReadFormulas       = errors.New("failed to read formulas")
	ErrWriteImage         = errors.New("failed to write image file")
	ErrWriteHTML          = errors.New("failed to write HTML file")
	ErrRenderIncomplete   = errors.New("some formulas could not be rendered")
	ErrSurfaceUnavailable = errors.New("rendering surface unavailable")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)
