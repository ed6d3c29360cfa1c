package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/query"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
	"github.com/JakeFAU/jobsearch-ingest/internal/source/hh"
)

// Searcher queries the job board.
type Searcher interface {
	SearchVacancies(ctx context.Context, params hh.SearchParams) ([]records.Vacancy, error)
	SearchResumes(ctx context.Context, params hh.SearchParams) ([]records.Resume, error)
}

// Pipeline accepts records for write-behind persistence and reports kinds
// whose persistence worker has died.
type Pipeline interface {
	Enqueue(rec records.Record) bool
	DeadKinds() []records.Kind
}

// StoreReader runs compiled stored queries.
type StoreReader interface {
	Query(ctx context.Context, plan query.Plan, kind records.Kind) (any, error)
}

// Options tunes request handling.
type Options struct {
	RequestTimeout time.Duration
	DefaultLimit   int
	MaxLimit       int
}

// Server wires HTTP handlers to the source adapter, the pipeline and the store.
type Server struct {
	router   chi.Router
	searcher Searcher
	pipeline Pipeline
	reader   StoreReader
	opts     Options
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, pipeline Pipeline, reader StoreReader, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	metrics.Init()
	s := &Server{
		searcher: searcher,
		pipeline: pipeline,
		reader:   reader,
		opts:     opts,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/search", func(r chi.Router) {
		r.Get("/vacancies", s.searchVacancies)
		r.Get("/resumes", s.searchResumes)
	})
	for _, prefix := range []string{"/store", "/db"} {
		r.Route(prefix, func(r chi.Router) {
			r.Get("/vacancies", s.storedQuery(records.KindVacancy))
			r.Get("/resumes", s.storedQuery(records.KindResume))
		})
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Detail string         `json:"detail"`
	Status string         `json:"status"`
	Dead   []records.Kind `json:"dead_workers,omitempty"`
}

// health answers 503 once any persistence worker has died, since records of
// that kind are no longer stored until the process is restarted.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	var dead []records.Kind
	if s.pipeline != nil {
		dead = s.pipeline.DeadKinds()
	}
	if len(dead) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Detail: "persistence stopped",
			Status: "degraded",
			Dead:   dead,
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Detail: "server functional", Status: "ok"})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

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
				zap.String("request_id", RequestID(r.Context())),
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
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("error", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	conn, buf, err := h.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("hijack connection: %w", err)
	}
	return conn, buf, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
