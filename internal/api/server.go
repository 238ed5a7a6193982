// Package api exposes the crawler's operational HTTP interface:
// health probes, Prometheus metrics, and read-only crawl status.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finsight/newscrawler/internal/crawl"
	"github.com/finsight/newscrawler/internal/metrics"
	"github.com/finsight/newscrawler/internal/middleware"
	"github.com/finsight/newscrawler/internal/profile"
)

// QuotaReader reports how many articles have been persisted so far.
type QuotaReader interface {
	Saved(domain string) (site int, global int)
}

// Server wires the ops routes to the running crawl.
type Server struct {
	router chi.Router
	sites  []*profile.Site
	quotas QuotaReader
	clock  crawl.Clock
	logger *zap.Logger

	started time.Time
	runID   string
}

// NewServer constructs a Server with middleware and routes.
func NewServer(sites []*profile.Site, quotas QuotaReader, runID string, clock crawl.Clock, logger *zap.Logger) *Server {
	s := &Server{
		sites:   sites,
		quotas:  quotas,
		clock:   clock,
		logger:  logger,
		started: clock.Now(),
		runID:   runID,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/sites", s.listSites)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type siteStatus struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	StartURL string `json:"start_url"`
	RenderJS bool   `json:"render_js"`
	Saved    int    `json:"saved"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	sites := make([]siteStatus, 0, len(s.sites))
	global := 0
	for _, site := range s.sites {
		saved, g := s.quotas.Saved(site.Domain)
		global = g
		sites = append(sites, siteStatus{
			Name:     site.Name,
			Domain:   site.Domain,
			StartURL: site.StartURL,
			RenderJS: site.RenderJS,
			Saved:    saved,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":         s.runID,
		"uptime_seconds": int(s.clock.Now().Sub(s.started).Seconds()),
		"saved_total":    global,
		"sites":          sites,
	})
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	out := make([]map[string]any, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, map[string]any{
			"name":      site.Name,
			"domain":    site.Domain,
			"start_url": site.StartURL,
			"render_js": site.RenderJS,
			"enabled":   site.Enabled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": out})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
