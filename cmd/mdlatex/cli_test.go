package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/config"
)

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no args", nil, ExitUsage, "", "Usage: mdlatex"},
		{"unknown command", []string{"convert"}, ExitUsage, "", "Unknown command: convert"},
		{"version", []string{"version"}, ExitSuccess, "mdlatex dev", ""},
		{"help", []string{"help"}, ExitSuccess, "Commands:", ""},
		{"help render", []string{"help", "render"}, ExitSuccess, "--batch-timeout", ""},
		{"render --help", []string{"render", "--help"}, ExitSuccess, "", ""},
		{"render without input", []string{"render"}, ExitIO, "", "error: no input specified"},
		{"serve extra args", []string{"serve", "extra"}, ExitUsage, "", "unexpected arguments"},
		{"render ok", []string{"render", "-q", "x"}, ExitSuccess, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)
			env, stdout, stderr := testEnv(echoFactory())

			code := run(context.Background(), tt.args, env)

			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout missing %q:\n%s", tt.wantStdout, stdout.String())
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr.String())
			}
		})
	}
}

func TestRun_BrowserUnavailable(t *testing.T) {
	isolateConfig(t)
	env, _, stderr := testEnv(brokenFactory())

	code := run(context.Background(), []string{"render", "x"}, env)

	if code != ExitBrowser {
		t.Errorf("exit code = %d, want %d", code, ExitBrowser)
	}
	if !strings.Contains(stderr.String(), "hint:") {
		t.Errorf("stderr should carry hints:\n%s", stderr.String())
	}
}

func TestRun_ConfigNotFound(t *testing.T) {
	isolateConfig(t)
	env, _, stderr := testEnv(echoFactory())

	code := run(context.Background(), []string{"render", "-c", "absent", "x"}, env)

	if code != ExitUsage {
		t.Errorf("exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(stderr.String(), "config file not found") {
		t.Errorf("stderr = %s", stderr.String())
	}
}

func TestRunConfig(t *testing.T) {
	t.Run("prints merged configuration", func(t *testing.T) {
		dir := isolateConfig(t)
		path := filepath.Join(dir, "team.yaml")
		content := "scheduler:\n  batchTimeout: 20s\ncache:\n  redis:\n    enabled: true\n    password: hunter2\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		env, stdout, _ := testEnv(nil)

		if err := runConfig([]string{"-c", path, "--max-batches", "4"}, env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := stdout.String()
		for _, want := range []string{"maxConcurrentBatches: 4", "batchTimeout: 20s", "enabled: true"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "hunter2") {
			t.Error("redis password should be redacted")
		}
	})

	t.Run("rejects positional args", func(t *testing.T) {
		isolateConfig(t)
		env, _, _ := testEnv(nil)

		if err := runConfig([]string{"extra"}, env); err != ErrUnexpectedArgs {
			t.Errorf("error = %v, want ErrUnexpectedArgs", err)
		}
	})
}

func TestHintFor(t *testing.T) {
	t.Setenv("ROD_BROWSER_BIN", "")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"browser", fmt.Errorf("x: %w", mdlatex.ErrBrowserConnect), "ROD_BROWSER_BIN"},
		{"config", config.ErrConfigNotFound, "--config"},
		{"style", assets.ErrStyleNotFound, "plain"},
		{"other", ErrWriteImage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hintFor(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("hintFor() = %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("hintFor() = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}
