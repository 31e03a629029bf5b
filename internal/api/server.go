package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"riskquant/internal/analysis"
	"riskquant/internal/history"
	"riskquant/internal/optimize"
	"riskquant/internal/risk"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Service is the engine surface the HTTP layer drives.
type Service interface {
	Sync(ctx context.Context, source string, drafts []risk.Draft, iterations int, seed *int64) (optimize.SimulationContext, []risk.Rejection, error)
	Optimise(source string, req optimize.Request) (optimize.Result, error)
	Analyze(ctx context.Context, req analysis.Request) (analysis.Report, error)
	History() *history.Store
	Contexts() *optimize.ContextHolder
}

// Server routes the HTTP API onto the engine.
type Server struct {
	router         *chi.Mux
	svc            Service
	metrics        http.Handler
	enableCharts   bool
	criticalScore  float64
	requestTimeout time.Duration
}

// Options configures a Server.
type Options func(*Server)

// WithMetrics exposes h on GET /metrics.
func WithMetrics(h http.Handler) Options {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMermaidCharts attaches Mermaid charts to every analysis response.
func WithMermaidCharts(enabled bool) Options {
	return func(s *Server) {
		s.enableCharts = enabled
	}
}

// WithCriticalScore sets the threshold line drawn on forecast charts.
func WithCriticalScore(v float64) Options {
	return func(s *Server) {
		s.criticalScore = v
	}
}

// WithRequestTimeout bounds how long a single request may run.
func WithRequestTimeout(d time.Duration) Options {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// New builds the router.
func New(svc Service, opts ...Options) *Server {
	r := chi.NewRouter()
	s := &Server{
		router:         r,
		svc:            svc,
		criticalScore:  80,
		requestTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Post("/context", s.handleContext)
		r.Post("/analysis", s.handleAnalysis)
		r.Get("/history/{riskID}", s.handleHistory)

		r.Post("/mitigation/optimise", s.handleOptimise)
		r.Get("/mitigation/optimise", s.handleOptimiseStatus)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger logs every request once it completes.
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Msg("access")
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

type errorResponse struct {
	RequestID string            `json:"requestId"`
	Error     string            `json:"error"`
	Details   []ValidationError `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, requestID, msg string, details []ValidationError) {
	writeJSON(w, status, errorResponse{RequestID: requestID, Error: msg, Details: details})
}

func middlewareID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
