package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/fileutil"
	"github.com/alnah/go-mdlatex/internal/hints"
)

// runRender renders formulas given as arguments, or one per line on stdin
// when the only argument is "-", into image files.
func runRender(ctx context.Context, args []string, env *Environment) error {
	flags, formulas, err := parseRenderFlags(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if len(formulas) == 1 && formulas[0] == "-" {
		formulas, err = readFormulas(env.Stdin)
		if err != nil {
			return err
		}
	}
	if len(formulas) == 0 {
		return fmt.Errorf("%w: pass formulas as arguments or \"-\" for stdin", ErrNoInput)
	}

	a, err := newApp(&flags.common, &flags.renderer, env, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	start := env.Now()
	renderCtx, cancel := a.requestContext(ctx, flags.timeout)
	images, err := a.manager.Render(renderCtx, formulas)
	cancel()
	if err != nil {
		return fmt.Errorf("rendering: %w", a.renderFailure(err))
	}

	if err := os.MkdirAll(flags.output, dirPermissions); err != nil {
		return fmt.Errorf("%w: %w%s", ErrWriteImage, err, hints.ForOutputDirectory())
	}
	paths, err := writeImages(ctx, flags.output, flags.prefix, images)
	if err != nil {
		return err
	}

	failed := 0
	for i, img := range images {
		if img.IsPlaceholder() {
			failed++
			if !flags.common.quiet {
				fmt.Fprintf(env.Stderr, "FAIL %s\n", formulas[i])
			}
			continue
		}
		if !flags.common.quiet {
			fmt.Fprintf(env.Stdout, "%s -> %s (%dx%d)\n", formulas[i], paths[i], img.Width, img.Height)
		}
	}
	if flags.common.verbose {
		fmt.Fprintf(env.Stderr, "rendered %d formulas in %s\n", len(images)-failed, env.Now().Sub(start).Round(time.Millisecond))
	}

	switch {
	case failed == 0:
		return nil
	case failed == len(images) && a.manager.Stats().State != mdlatex.SurfaceReady:
		return fmt.Errorf("%w%s%s", ErrSurfaceUnavailable, hints.ForBrowserConnect(), hints.ForSurfaceLoad())
	default:
		return fmt.Errorf("%w: %d of %d%s", ErrRenderIncomplete, failed, len(images), hints.ForTimeout())
	}
}

// readFormulas reads one formula per non-blank line.
func readFormulas(r io.Reader) ([]string, error) {
	var formulas []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			formulas = append(formulas, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFormulas, err)
	}
	return formulas, nil
}

// writeImages writes every rendered image to dir concurrently. Placeholders
// are skipped and get an empty path.
func writeImages(ctx context.Context, dir, prefix string, images []mdlatex.Image) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	paths := make([]string, len(images))
	for i, img := range images {
		if img.IsPlaceholder() {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%03d.%s", prefix, i+1, img.Format))
		paths[i] = path

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(path, img.Data, filePermissions); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrWriteImage, path, err)
			}
			return nil
		})
	}
	return paths, g.Wait()
}
