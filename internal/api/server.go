package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skywatch/internal/archive"
	"github.com/star/skywatch/internal/auth"
	"github.com/star/skywatch/internal/health"
	"github.com/star/skywatch/internal/heavens"
	"github.com/star/skywatch/internal/httputil"
	"github.com/star/skywatch/internal/metrics"
)

// Refresher is the subset of the refresher the API drives.
type Refresher interface {
	Has(source string) bool
	Sources() []string
	RefreshOnce(ctx context.Context, source string) (*heavens.Table, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr       string      `yaml:"addr"`
	TrustProxy bool        `yaml:"trust_proxy"`
	Auth       auth.Config `yaml:"auth"`
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, logger *slog.Logger, store *archive.Store, refresher Refresher) *Server {
	mux := http.NewServeMux()
	limiter := httputil.NewLimiter(1, 16)

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return store.Len() > 0 }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/tables", listTablesHandler(store, refresher))
	mux.HandleFunc("GET /api/v1/tables/{source}", getTableHandler(store, refresher))
	mux.HandleFunc("POST /api/v1/tables/{source}/fetch", fetchTableHandler(logger, refresher, limiter, cfg.TrustProxy))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

type tableSummary struct {
	Source     string     `json:"source"`
	Loaded     bool       `json:"loaded"`
	URL        string     `json:"url,omitempty"`
	Rows       int        `json:"rows"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds float64    `json:"age_seconds,omitempty"`
}

func listTablesHandler(store *archive.Store, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := make([]tableSummary, 0)
		for _, name := range refresher.Sources() {
			s := tableSummary{Source: name}
			if t := store.Get(name); t != nil {
				fetched := t.FetchedAt
				s.Loaded = true
				s.URL = t.URL
				s.Rows = len(t.Rows)
				s.FetchedAt = &fetched
				s.AgeSeconds = store.AgeSeconds(name)
			}
			summaries = append(summaries, s)
		}
		writeJSON(w, http.StatusOK, map[string]any{"tables": summaries})
	}
}

func getTableHandler(store *archive.Store, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.PathValue("source")
		if !refresher.Has(source) {
			writeError(w, http.StatusNotFound, "unknown table source")
			return
		}
		t := store.Get(source)
		if t == nil {
			writeError(w, http.StatusServiceUnavailable, "table not loaded yet")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func fetchTableHandler(logger *slog.Logger, refresher Refresher, limiter *httputil.Limiter, trustProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.PathValue("source")
		if !refresher.Has(source) {
			writeError(w, http.StatusNotFound, "unknown table source")
			return
		}

		ip := httputil.ClientIP(r, trustProxy)
		if !limiter.Acquire(ip) {
			writeError(w, http.StatusTooManyRequests, "fetch already in progress")
			return
		}
		defer limiter.Release(ip)

		t, err := refresher.RefreshOnce(r.Context(), source)
		if err != nil {
			logger.Warn("manual fetch failed", "component", "api", "source", source, "error", err)
			var fe *heavens.FetchError
			if errors.As(err, &fe) {
				writeError(w, http.StatusBadGateway, fe.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "fetch failed")
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// quietPath returns true for health and readiness paths that should not log at INFO.
func quietPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if quietPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
