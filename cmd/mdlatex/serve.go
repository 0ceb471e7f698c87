package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mdlatex "github.com/alnah/go-mdlatex"
	"github.com/alnah/go-mdlatex/internal/config"
)

// Request limits of the HTTP API.
const (
	maxRequestBytes       = 1 << 20
	maxFormulasPerRequest = 1000
)

// renderRequest is the body of POST /render.
type renderRequest struct {
	Formulas []string `json:"formulas"`
}

// renderedImage is one entry of the POST /render response.
type renderedImage struct {
	Formula     string `json:"formula"`
	Placeholder bool   `json:"placeholder"`
	Format      string `json:"format,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	DataURI     string `json:"dataUri,omitempty"`
}

type renderResponse struct {
	Images []renderedImage `json:"images"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Surface string `json:"surface"`
	Running int    `json:"running"`
	Queued  int    `json:"queued"`
	Waiting int    `json:"waiting"`
	Batches int    `json:"batches"`
}

// server exposes a Manager over HTTP.
type server struct {
	manager  *mdlatex.Manager
	registry *prometheus.Registry
	markdown config.MarkdownConfig
	assets   string
	timeout  time.Duration // per request, 0 = none
	logger   *zap.Logger
}

// requestContext bounds one render request by s.timeout.
func (s *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

// routes builds the handler tree. ctx bounds background middleware work.
func (s *server) routes(ctx context.Context, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("POST /markdown", s.handleMarkdown)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	middlewares := []Middleware{Recovery(s.logger), RequestLogger(s.logger)}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, cfg.RateLimit, cfg.Burst))
	}
	return Chain(mux, middlewares...)
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Formulas) == 0 {
		writeJSONError(w, http.StatusBadRequest, "formulas must not be empty")
		return
	}
	if len(req.Formulas) > maxFormulasPerRequest {
		writeJSONError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("at most %d formulas per request", maxFormulasPerRequest))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	images, err := s.manager.Render(ctx, req.Formulas)
	if err != nil {
		s.writeRenderError(w, err)
		return
	}

	resp := renderResponse{Images: make([]renderedImage, len(images))}
	for i, img := range images {
		resp.Images[i] = renderedImage{
			Formula:     req.Formulas[i],
			Placeholder: img.IsPlaceholder(),
			Format:      img.Format,
			Width:       img.Width,
			Height:      img.Height,
			DataURI:     img.DataURI(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMarkdown converts the request body to an HTML document. The title,
// style and highlight query parameters override the configured defaults.
func (s *server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	q := r.URL.Query()
	opts := mdlatex.MarkdownOptions{
		Title:          q.Get("title"),
		Style:          firstNonEmpty(q.Get("style"), s.markdown.Style),
		HighlightStyle: firstNonEmpty(q.Get("highlight"), s.markdown.HighlightStyle),
		AssetsDir:      s.assets,
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	html, err := mdlatex.RenderMarkdown(ctx, s.manager, string(body), opts)
	if err != nil {
		s.writeRenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.manager.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Surface: st.State.String(),
		Running: st.Running,
		Queued:  st.Queued,
		Waiting: st.Waiting,
		Batches: st.Batches,
	})
}

func (s *server) writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mdlatex.ErrManagerClosed):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// client went away; nothing useful to send
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case exitCodeFor(err) == ExitUsage:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("render request failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// runServe serves the HTTP API until ctx is cancelled, then shuts down
// gracefully. SIGUSR1 releases cached images and, when idle, the surface.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	registry := env.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	a, err := newApp(&flags.common, &flags.renderer, env, registry)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if flags.addr != "" {
		cfg.Addr = flags.addr
	}
	if flags.rateLimit > 0 {
		cfg.RateLimit = flags.rateLimit
	}
	if flags.burst > 0 {
		cfg.Burst = flags.burst
	}

	s := &server{
		manager:  a.manager,
		registry: registry,
		markdown: a.cfg.Markdown,
		assets:   a.cfg.Assets.BasePath,
		timeout:  a.cfg.Scheduler.RequestTimeout,
		logger:   a.logger.With(zap.String("component", "http_server")),
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.routes(ctx, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	pressure, stopPressure := notifyMemoryPressure()
	defer stopPressure()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pressure:
				s.logger.Info("memory pressure signal received")
				a.manager.HandleMemoryPressure()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()
	s.logger.Info("serving", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
