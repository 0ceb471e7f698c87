package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdlatex <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     Render LaTeX formulas to image files")
	fmt.Fprintln(w, "  markdown   Convert markdown with $...$ math to HTML")
	fmt.Fprintln(w, "  serve      Run the HTTP render service")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  doctor     Check system configuration")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdlatex help <command>' for details on a specific command.")
}

// printRendererUsage prints the flags shared by rendering commands.
func printRendererUsage(w io.Writer) {
	fmt.Fprintln(w, "Renderer:")
	fmt.Fprintln(w, "      --browser <path>      Chrome/Chromium binary")
	fmt.Fprintln(w, "      --no-sandbox          Disable the Chrome sandbox")
	fmt.Fprintln(w, "      --mathjax-url <url>   MathJax tex-svg.js location (file:// for offline)")
	fmt.Fprintln(w, "      --batch-timeout <d>   Per-batch deadline (default 15s)")
	fmt.Fprintln(w, "      --max-batches <n>     Concurrent batches (1-16, default 2)")
	fmt.Fprintln(w, "      --scale <n>           Raster scale factor (1-8)")
	fmt.Fprintln(w, "      --asset-path <dir>    Custom styles/ and surfaces/ directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cache:")
	fmt.Fprintln(w, "      --cache-dir <dir>     Disk cache directory")
	fmt.Fprintln(w, "      --no-cache            Memory cache only (no disk or redis)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging and timing")
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdlatex render <formula>... [flags]")
	fmt.Fprintln(w, "       mdlatex render - [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render LaTeX formulas to image files. With \"-\", formulas are read")
	fmt.Fprintln(w, "from stdin, one per line.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default .)")
	fmt.Fprintln(w, "      --prefix <s>          File name prefix (default formula)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Overall deadline (default scheduler.requestTimeout)")
	fmt.Fprintln(w)
	printRendererUsage(w)
}

// printMarkdownUsage prints usage for the markdown command.
func printMarkdownUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdlatex markdown <input.md> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert markdown to standalone HTML with formulas embedded as images.")
	fmt.Fprintln(w, "Use \"-\" to read stdin and write stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Document:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (default input with .html)")
	fmt.Fprintln(w, "      --title <s>           Document title (default first H1)")
	fmt.Fprintln(w, "      --style <name>        Stylesheet: github, plain, none")
	fmt.Fprintln(w, "      --highlight-style <s> Code highlight style, none disables")
	fmt.Fprintln(w, "  -t, --timeout <d>         Overall deadline (default scheduler.requestTimeout)")
	fmt.Fprintln(w)
	printRendererUsage(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdlatex serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the HTTP render service.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  POST /render      {\"formulas\": [...]} -> images as data URIs")
	fmt.Fprintln(w, "  POST /markdown    markdown body -> HTML")
	fmt.Fprintln(w, "  GET  /healthz     surface state and queue sizes")
	fmt.Fprintln(w, "  GET  /metrics     Prometheus metrics")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --addr <host:port>    Listen address (default :8080)")
	fmt.Fprintln(w, "      --rate-limit <f>      Requests/s per client IP (0 = unlimited)")
	fmt.Fprintln(w, "      --burst <n>           Rate limit burst")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Send SIGUSR1 to drop the in-memory image cache.")
	fmt.Fprintln(w)
	printRendererUsage(w)
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(env.Stdout)
	case "markdown":
		printMarkdownUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "config":
		fmt.Fprintln(env.Stdout, "Usage: mdlatex config [-c <name>] [renderer flags]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Print the configuration after merging file, environment and flags.")
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: mdlatex doctor [--json] [-c <name>]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check Chrome, the surface page, cache tiers and the environment.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mdlatex version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mdlatex help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
