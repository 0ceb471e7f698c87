package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	mdlatex "github.com/alnah/go-mdlatex"
)

var payloadUnescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`)

// echoSurface answers every batch with a PNG per formula, except formulas
// listed in fail.
type echoSurface struct {
	events mdlatex.SurfaceEvents
	fail   map[string]bool

	mu    sync.Mutex
	calls int
}

func (s *echoSurface) RenderBatch(_ context.Context, batchID, payload string, _ int) error {
	var formulas []string
	if err := json.Unmarshal([]byte(payloadUnescaper.Replace(payload)), &formulas); err != nil {
		return err
	}
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	type entry struct {
		Latex  string `json:"latex"`
		Base64 string `json:"base64"`
	}
	msg := struct {
		BatchID string  `json:"batchId"`
		Results []entry `json:"results"`
	}{BatchID: batchID}
	for _, f := range formulas {
		if s.fail[f] {
			continue
		}
		msg.Results = append(msg.Results, entry{Latex: f, Base64: pngDataURI(len(f) + 1)})
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	go s.events.Result(raw)
	return nil
}

func (s *echoSurface) Close() error { return nil }

// pngDataURI returns a width x 1 PNG as a data URI.
func pngDataURI(width int) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 1))); err != nil {
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// echoFactory returns a SurfaceFactory whose surfaces load instantly.
func echoFactory(fail ...string) mdlatex.SurfaceFactory {
	failSet := make(map[string]bool, len(fail))
	for _, f := range fail {
		failSet[f] = true
	}
	return func(events mdlatex.SurfaceEvents) (mdlatex.Surface, error) {
		s := &echoSurface{events: events, fail: failSet}
		go events.Ready()
		return s, nil
	}
}

// brokenFactory returns a SurfaceFactory whose surfaces never load.
func brokenFactory() mdlatex.SurfaceFactory {
	return func(events mdlatex.SurfaceEvents) (mdlatex.Surface, error) {
		return nil, mdlatex.ErrBrowserConnect
	}
}

// idleSurface never answers.
type idleSurface struct{}

func (idleSurface) RenderBatch(context.Context, string, string, int) error { return nil }
func (idleSurface) Close() error                                           { return nil }

// stuckFactory returns a SurfaceFactory whose surfaces never signal ready,
// like a page whose math engine cannot be fetched.
func stuckFactory() mdlatex.SurfaceFactory {
	return func(events mdlatex.SurfaceEvents) (mdlatex.Surface, error) {
		return idleSurface{}, nil
	}
}

// crashingFactory returns a SurfaceFactory whose surfaces crash after d,
// before ever signalling ready.
func crashingFactory(d time.Duration) mdlatex.SurfaceFactory {
	return func(events mdlatex.SurfaceEvents) (mdlatex.Surface, error) {
		time.AfterFunc(d, events.Crashed)
		return idleSurface{}, nil
	}
}

// testEnv returns an Environment with captured output and a fake surface.
func testEnv(factory mdlatex.SurfaceFactory) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Environment{
		Now:            func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		Stdin:          strings.NewReader(""),
		Stdout:         stdout,
		Stderr:         stderr,
		SurfaceFactory: factory,
	}, stdout, stderr
}

// isolateConfig clears MDLATEX_* variables and moves into an empty directory
// so no config file or environment leaks into a test.
func isolateConfig(t *testing.T) string {
	t.Helper()

	for _, name := range []string{
		"MDLATEX_CONFIG", "MDLATEX_LOG_LEVEL", "MDLATEX_LOG_FORMAT",
		"MDLATEX_MATHJAX_URL", "MDLATEX_BATCH_TIMEOUT", "MDLATEX_CACHE_DIR",
		"MDLATEX_REDIS_ADDR", "MDLATEX_ADDR", "MDLATEX_CONTAINER",
	} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
