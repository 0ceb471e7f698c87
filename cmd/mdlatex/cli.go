package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/config"
	"github.com/alnah/go-mdlatex/internal/hints"
	"github.com/alnah/go-mdlatex/internal/yamlutil"
)

// run dispatches a command and returns the process exit code.
func run(ctx context.Context, args []string, env *Environment) int {
	warnUnknownEnvVars(env.Stderr)

	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "render":
		err = runRender(ctx, rest, env)
	case "markdown", "md":
		err = runMarkdown(ctx, rest, env)
	case "serve":
		err = runServe(ctx, rest, env)
	case "config":
		err = runConfig(rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "mdlatex %s\n", Version)
		return ExitSuccess
	case "help", "--help", "-h":
		runHelp(rest, env)
		return ExitSuccess
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}

	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
	return exitCodeFor(err)
}

// hintFor returns an actionable hint for errors that do not carry one.
func hintFor(err error) string {
	switch {
	case errors.Is(err, mdlatex.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, assets.ErrStyleNotFound):
		return hints.ForStyleNotFound(assets.EmbeddedStyles())
	default:
		return ""
	}
}

// runConfig prints the effective configuration as YAML.
func runConfig(args []string, env *Environment) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	var common commonFlags
	var rf rendererFlags
	addCommonFlags(fs, &common)
	addRendererFlags(fs, &rf)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return ErrUnexpectedArgs
	}

	cfg, err := loadConfig(&common, &rf)
	if err != nil {
		return err
	}
	if cfg.Cache.Redis.Password != "" {
		cfg.Cache.Redis.Password = "********"
	}

	data, err := yamlutil.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = env.Stdout.Write(data)
	return err
}
