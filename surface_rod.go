package mdlatex

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/fileutil"
	"github.com/alnah/go-mdlatex/internal/process"
)

// DefaultLoadTimeout bounds how long a new surface may take to signal ready
// before it is treated as crashed.
const DefaultLoadTimeout = 30 * time.Second

// Names of the functions the surface page calls back into.
const (
	readyHandlerName  = "latexReadyHandler"
	resultHandlerName = "latexResultHandler"
)

// RodOptions configures the headless Chrome rendering surface.
type RodOptions struct {
	// BrowserBin is the Chrome binary. Defaults to $ROD_BROWSER_BIN, then
	// rod's lookup (downloading Chromium on first run if needed).
	BrowserBin string

	// NoSandbox disables the Chrome sandbox. Forced on when CI=true or
	// ROD_BROWSER_BIN is set (containerized environments).
	NoSandbox bool

	// MathJaxURL overrides the math engine script location.
	MathJaxURL string

	// AssetsDir holds custom surface pages under surfaces/{name}.html.
	AssetsDir string

	// SurfaceName selects the surface page. Defaults to "mathjax".
	SurfaceName string

	// LoadTimeout bounds page load. Defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// NewRodSurfaceFactory returns a SurfaceFactory that runs each surface in its
// own headless Chrome process.
func NewRodSurfaceFactory(opts RodOptions, logger *zap.Logger) SurfaceFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(events SurfaceEvents) (Surface, error) {
		return newRodSurface(opts, events, logger.With(zap.String("component", "rod_surface")))
	}
}

// rodSurface is a Surface backed by one Chrome page.
type rodSurface struct {
	events SurfaceEvents
	logger *zap.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	cancelEvents context.CancelFunc
	cleanupPage  func()
	loadTimer    *time.Timer
	readyOnce    sync.Once

	mu     sync.Mutex // serializes script evaluation and Close
	closed bool
}

var _ Surface = (*rodSurface)(nil)

func newRodSurface(opts RodOptions, events SurfaceEvents, logger *zap.Logger) (_ *rodSurface, err error) {
	html, err := surfacePageHTML(opts)
	if err != nil {
		return nil, err
	}

	s := &rodSurface{events: events, logger: logger}
	defer func() {
		if err != nil {
			s.teardown()
		}
	}()

	if err := s.launch(opts); err != nil {
		return nil, err
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	s.page = page

	// Bindings must exist before navigation so the page can call them.
	if _, err := page.Expose(readyHandlerName, s.onReady); err != nil {
		return nil, fmt.Errorf("%w: exposing %s: %v", ErrPageCreate, readyHandlerName, err)
	}
	if _, err := page.Expose(resultHandlerName, s.onResult); err != nil {
		return nil, fmt.Errorf("%w: exposing %s: %v", ErrPageCreate, resultHandlerName, err)
	}

	s.watchCrashes()

	path, cleanup, err := fileutil.WriteTempFile(html, "html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	s.cleanupPage = cleanup

	loadTimeout := opts.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	s.loadTimer = time.AfterFunc(loadTimeout, func() {
		s.logger.Error("surface did not become ready", zap.Duration("timeout", loadTimeout))
		s.events.Crashed()
	})

	if err := page.Navigate("file://" + path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	s.logger.Debug("surface page loading", zap.String("page", path))
	return s, nil
}

// surfacePageHTML resolves and executes the configured surface page.
func surfacePageHTML(opts RodOptions) (string, error) {
	resolver, err := assets.NewAssetResolver(opts.AssetsDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	name := opts.SurfaceName
	if name == "" {
		name = assets.DefaultSurfaceName
	}
	src, err := resolver.LoadSurface(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	html, err := assets.RenderSurfacePage(src, assets.SurfacePage{MathJaxURL: opts.MathJaxURL})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	return html, nil
}

func (s *rodSurface) launch(opts RodOptions) error {
	l := launcher.New()

	bin := opts.BrowserBin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if opts.NoSandbox || os.Getenv("CI") == "true" || bin != "" {
		l = l.NoSandbox(true)
	}
	s.launcher = l

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	s.browser = browser
	return nil
}

// watchCrashes reports renderer process death through events.Crashed.
func (s *rodSurface) watchCrashes() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelEvents = cancel

	wait := s.page.Context(ctx).EachEvent(func(e *proto.InspectorTargetCrashed) {
		s.logger.Warn("renderer process crashed")
		s.events.Crashed()
	})
	go wait()
}

func (s *rodSurface) onReady(gson.JSON) (interface{}, error) {
	s.readyOnce.Do(func() {
		if s.loadTimer != nil {
			s.loadTimer.Stop()
		}
		s.events.Ready()
	})
	return nil, nil
}

func (s *rodSurface) onResult(msg gson.JSON) (interface{}, error) {
	s.events.Result([]byte(msg.Str()))
	return nil, nil
}

// RenderBatch evaluates renderFormulasBatch on the page. It returns once the
// call is accepted; results arrive through the result handler.
func (s *rodSurface) RenderBatch(ctx context.Context, batchID, payload string, scale int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSurfaceClosed
	}

	expr := fmt.Sprintf("renderFormulasBatch('%s', '%s', %d)", batchID, payload, scale)
	res, err := proto.RuntimeEvaluate{Expression: expr}.Call(s.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScriptFailed, err)
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("%w: %s", ErrScriptFailed, res.ExceptionDetails.Text)
	}
	return nil
}

// Close shuts down the page and the browser process tree.
func (s *rodSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.teardown()
}

func (s *rodSurface) teardown() error {
	if s.loadTimer != nil {
		s.loadTimer.Stop()
	}
	if s.cancelEvents != nil {
		s.cancelEvents()
	}

	var err error
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		pid := s.launcher.PID()
		process.KillProcessGroup(pid)
		s.launcher.Kill()
		if process.Alive(pid) {
			s.logger.Debug("browser process not yet reaped", zap.Int("pid", pid))
		}
	}
	if s.cleanupPage != nil {
		s.cleanupPage()
	}
	return err
}
