package main

import (
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mdlatex/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// rendererFlags holds flags that configure the render manager and its cache.
type rendererFlags struct {
	browserBin   string
	noSandbox    bool
	mathjaxURL   string
	batchTimeout time.Duration
	maxBatches   int
	scale        int
	cacheDir     string
	noCache      bool // disable persistent tiers
	assetPath    string
}

// renderFlags holds all flags for the render command.
type renderFlags struct {
	common   commonFlags
	renderer rendererFlags
	output   string
	prefix   string
	timeout  time.Duration
}

// markdownFlags holds all flags for the markdown command.
type markdownFlags struct {
	common         commonFlags
	renderer       rendererFlags
	output         string
	title          string
	style          string
	highlightStyle string
	timeout        time.Duration
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common    commonFlags
	renderer  rendererFlags
	addr      string
	rateLimit float64
	burst     int
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
}

// addRendererFlags adds renderer and cache flags to a FlagSet.
func addRendererFlags(fs *flag.FlagSet, f *rendererFlags) {
	fs.StringVar(&f.browserBin, "browser", "", "Chrome/Chromium binary")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox")
	fs.StringVar(&f.mathjaxURL, "mathjax-url", "", "MathJax tex-svg.js location")
	fs.DurationVar(&f.batchTimeout, "batch-timeout", 0, "per-batch deadline (e.g., 15s)")
	fs.IntVar(&f.maxBatches, "max-batches", 0, "concurrent batches (1-16)")
	fs.IntVar(&f.scale, "scale", 0, "raster scale factor (1-8)")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "disk cache directory")
	fs.BoolVar(&f.noCache, "no-cache", false, "use the memory cache only")
	fs.StringVar(&f.assetPath, "asset-path", "", "custom asset directory")
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string) (*renderFlags, []string, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	f := &renderFlags{}
	fs.Usage = func() { printRenderUsage(os.Stderr) }

	fs.StringVarP(&f.output, "output", "o", ".", "output directory")
	fs.StringVar(&f.prefix, "prefix", "formula", "output file name prefix")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "overall deadline (e.g., 30s, 2m)")
	addCommonFlags(fs, &f.common)
	addRendererFlags(fs, &f.renderer)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// parseMarkdownFlags parses markdown command flags and returns positional args.
func parseMarkdownFlags(args []string) (*markdownFlags, []string, error) {
	fs := flag.NewFlagSet("markdown", flag.ContinueOnError)
	f := &markdownFlags{}
	fs.Usage = func() { printMarkdownUsage(os.Stderr) }

	fs.StringVarP(&f.output, "output", "o", "", "output file (\"-\" = stdout)")
	fs.StringVar(&f.title, "title", "", "document title")
	fs.StringVar(&f.style, "style", "", "stylesheet name (\"none\" disables)")
	fs.StringVar(&f.highlightStyle, "highlight-style", "", "code highlight style (\"none\" disables)")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "overall deadline (e.g., 30s, 2m)")
	addCommonFlags(fs, &f.common)
	addRendererFlags(fs, &f.renderer)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	f := &serveFlags{}
	fs.Usage = func() { printServeUsage(os.Stderr) }

	fs.StringVar(&f.addr, "addr", "", "listen address (default :8080)")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "requests per second per client (0 = unlimited)")
	fs.IntVar(&f.burst, "burst", 0, "rate limiter burst")
	addCommonFlags(fs, &f.common)
	addRendererFlags(fs, &f.renderer)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, ErrUnexpectedArgs
	}
	return f, nil
}

// mergeRendererFlags applies explicitly set flags over cfg (CLI wins).
func mergeRendererFlags(f *rendererFlags, cfg *config.Config) {
	if f.browserBin != "" {
		cfg.Renderer.BrowserBin = f.browserBin
	}
	if f.noSandbox {
		cfg.Renderer.NoSandbox = true
	}
	if f.mathjaxURL != "" {
		cfg.Renderer.MathJaxURL = f.mathjaxURL
	}
	if f.batchTimeout > 0 {
		cfg.Scheduler.BatchTimeout = f.batchTimeout
	}
	if f.maxBatches != 0 {
		cfg.Scheduler.MaxConcurrentBatches = f.maxBatches
	}
	if f.scale != 0 {
		cfg.Scheduler.Scale = f.scale
	}
	if f.cacheDir != "" {
		cfg.Cache.DiskDir = f.cacheDir
	}
	if f.noCache {
		cfg.Cache.DiskDir = ""
		cfg.Cache.Redis.Enabled = false
	}
	if f.assetPath != "" {
		cfg.Assets.BasePath = f.assetPath
	}
}
