package api

import (
	"context"
	"net/http"
	"time"

	random "github.com/mazen160/go-random"
	"go.uber.org/zap"
)

// Server wraps the HTTP server.
type Server struct {
	srv *http.Server
}

// NewServer wires routes and returns a ready-to-start Server.
func NewServer(addr string, h *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      Routes(h),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute, // batch sweeps are slow
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Routes returns the API mux with middleware applied.
func Routes(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/api/v1/scrape", h.Scrape)
	mux.HandleFunc("/api/v1/scrape/cache", h.InvalidateCache)
	mux.HandleFunc("/api/v1/queries", h.Queries)

	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("POST /api/v1/tasks", h.CreateTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.GetTask)
	mux.HandleFunc("PATCH /api/v1/tasks/{id}", h.UpdateTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/export", h.ExportTask)
	mux.HandleFunc("POST /api/v1/tasks/bulk-export", h.BulkExport)
	mux.HandleFunc("POST /api/v1/tasks/process-pending", h.ProcessPending)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)

	return requestIDMiddleware(loggingMiddleware(mux))
}

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	zap.L().Info("lead-scraper listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware tags each request with an id, keeping one the caller
// already sent.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			var err error
			if id, err = random.String(12); err != nil {
				zap.L().Warn("api: request id", zap.Error(err))
			}
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with method, path, status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", r.Header.Get(requestIDHeader)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
