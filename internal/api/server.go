// Package api exposes the HTTP interface for the sync service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

// Service is the surface the HTTP layer drives. *app.App implements it.
type Service interface {
	Notify(ctx context.Context, site string, payload catalog.NotificationPayload) (catalog.Summary, error)
	FullSync(ctx context.Context, site string, urls []string) (catalog.Summary, error)
	SiteNames() []string
}

// Server wires HTTP handlers to the per-site syncers.
type Server struct {
	router  chi.Router
	service Service
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{service: service, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/sites", s.listSites)
	r.Post("/webhook/{site}", s.handleWebhook)
	r.Post("/sites/{site}/full-sync", s.handleFullSync)

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

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sites": s.service.SiteNames()})
}

// handleWebhook accepts a change-notification payload for one site. The
// path segment is authoritative; a site named in the body is ignored.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")

	var payload catalog.NotificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	payload.Site = site
	if len(payload.Pages) == 0 {
		writeError(w, http.StatusBadRequest, "no pages in payload")
		return
	}

	summary, err := s.service.Notify(r.Context(), site, payload)
	if err != nil {
		s.writeServiceError(w, site, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(summary))
}

type fullSyncRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) handleFullSync(w http.ResponseWriter, r *http.Request) {
	site := chi.URLParam(r, "site")

	var req fullSyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	summary, err := s.service.FullSync(r.Context(), site, req.URLs)
	if err != nil {
		s.writeServiceError(w, site, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(summary))
}

func (s *Server) writeServiceError(w http.ResponseWriter, site string, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownSite):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error("sync request failed", zap.String("site", site), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func summaryResponse(summary catalog.Summary) map[string]any {
	return map[string]any{
		"run_id":         summary.RunID,
		"site":           summary.Site,
		"duplicate":      summary.Duplicate,
		"processed":      summary.Processed,
		"skipped":        summary.Skipped,
		"failed":         summary.Failed,
		"touched_shards": summary.TouchedShards,
		"duration_ms":    summary.Duration.Milliseconds(),
	}
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
