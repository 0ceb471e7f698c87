// Package assets provides the rendering surface page and document styles.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem
//	    ├── FilesystemLoader  - loads from custom directory on disk
//	    └── AssetResolver     - combines both with custom-first fallback
//
// # Directory Structure
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css      # stylesheet for markdown output (e.g., github.css)
//	└── surfaces/
//	    └── {name}.html     # rendering surface page template (e.g., mathjax.html)
//
// Surface pages are html/template sources executed with SurfacePage. They
// must define renderFormulasBatch(batchId, payload, scale) and call
// window.latexReadyHandler once the math engine is loaded.
//
// # Security
//
// Asset names are validated to prevent path traversal attacks.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package assets
