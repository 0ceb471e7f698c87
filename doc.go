// Package mdlatex renders LaTeX formulas to bitmaps in batches on a headless
// browser surface, and converts Markdown with $...$ math to HTML.
//
// # Quick Start
//
// Create a manager, render, and close when done:
//
//	m, err := mdlatex.NewManager()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	images, err := m.Render(ctx, []string{`x^2`, `\frac{a}{b}`})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("x2.png", images[0].Data, 0644)
//
// The result has one Image per formula, in request order. A formula that
// could not be rendered yields a placeholder (Image.IsPlaceholder).
//
// # Scheduling
//
// Each Submit is checked against the image cache first; only the misses are
// sent to the surface as one batch. At most two batches are in flight at a
// time (WithMaxConcurrentBatches), each bounded by a 15 second timeout
// (WithBatchTimeout). Requests submitted while the surface is still loading
// wait and are replayed once it is ready.
//
// If the browser's renderer process crashes, every in-flight, queued and
// waiting request is replayed on a fresh surface. Completions fire exactly
// once per submission, on the Dispatcher (a single serial goroutine by
// default), unless the batch is cancelled with CancelBatch.
//
// # Configuration
//
//	m, err := mdlatex.NewManager(
//	    mdlatex.WithCache(tiered),
//	    mdlatex.WithLogger(logger),
//	    mdlatex.WithRegisterer(prometheus.DefaultRegisterer),
//	    mdlatex.WithRodOptions(mdlatex.RodOptions{MathJaxURL: "file:///opt/mathjax/tex-svg.js"}),
//	)
//
// # Browser Requirements
//
// The default surface requires Chrome/Chromium. The go-rod library downloads
// a managed Chromium on first run (~/.cache/rod/browser/). In containers and
// CI, set ROD_BROWSER_BIN to a preinstalled browser; the sandbox is then
// disabled automatically.
package mdlatex
