// Package handle serves the HTTP API in front of the analysis pipeline.
package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"face-match/api/internal/analysis"
	"face-match/api/internal/logger"
	"face-match/api/internal/metrics"
	"face-match/api/internal/store"
)

// Analyzer is satisfied by *pipeline.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, male, female string) (*analysis.RelationshipAnalysis, error)
}

// AttemptLister is satisfied by *store.AttemptRepo.
type AttemptLister interface {
	Recent(ctx context.Context, limit int) ([]store.AttemptRow, error)
}

type Handle struct {
	analyzer      Analyzer
	attempts      AttemptLister
	messages      analysis.Messages
	log           logger.Logger
	maxImageBytes int
	timeout       time.Duration
	health        func(ctx context.Context) error
}

type Option func(*Handle)

// WithAttempts enables GET /v1/attempts.
func WithAttempts(l AttemptLister) Option { return func(h *Handle) { h.attempts = l } }

func WithMessages(m analysis.Messages) Option { return func(h *Handle) { h.messages = m } }

func WithLogger(l logger.Logger) Option { return func(h *Handle) { h.log = l } }

func WithMaxImageBytes(n int) Option { return func(h *Handle) { h.maxImageBytes = n } }

// WithTimeout sets the analysis deadline used when the request names none.
func WithTimeout(d time.Duration) Option { return func(h *Handle) { h.timeout = d } }

// WithHealthCheck adds a dependency probe (the journal DB) to /healthz.
func WithHealthCheck(fn func(ctx context.Context) error) Option {
	return func(h *Handle) { h.health = fn }
}

func New(a Analyzer, opts ...Option) *Handle {
	h := &Handle{
		analyzer:      a,
		messages:      analysis.DefaultMessages(),
		log:           logger.NewNop(),
		maxImageBytes: 10 << 20,
		timeout:       defaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router. corsOrigins empty means no CORS headers.
func (h *Handle) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Timeout"},
			MaxAge:         300,
		}))
	}
	r.Use(metricsMiddleware)

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze", h.Analyze)
		rt.Get("/attempts", h.Attempts)
	})
	return r
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
