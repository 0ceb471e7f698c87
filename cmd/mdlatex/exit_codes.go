package main

import (
	"errors"
	"os"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/config"
	"github.com/alnah/go-mdlatex/internal/imagecache"
	"github.com/alnah/go-mdlatex/internal/pipeline"
)

// Exit codes for the mdlatex CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful run
	ExitGeneral = 1 // General/unexpected error, incomplete render
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied, cache backend down
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, mdlatex.ErrBrowserConnect) ||
		errors.Is(err, mdlatex.ErrPageCreate) ||
		errors.Is(err, mdlatex.ErrPageLoad) ||
		errors.Is(err, ErrSurfaceUnavailable) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadMarkdown) ||
		errors.Is(err, ErrReadFormulas) ||
		errors.Is(err, ErrWriteImage) ||
		errors.Is(err, ErrWriteHTML) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, imagecache.ErrRedisConnect) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrUnexpectedArgs) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrOutOfRange) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, mdlatex.ErrNoFormulas) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrSurfaceNotFound) ||
		errors.Is(err, assets.ErrInvalidAssetName) ||
		errors.Is(err, assets.ErrInvalidBasePath) ||
		errors.Is(err, pipeline.ErrUnknownHighlightStyle) {
		return ExitUsage
	}

	return ExitGeneral
}
