// Package api expõe as rotas do dashboard executivo, cada uma atrás da sua
// policy de rate limit.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"execintel-gateway/middleware/ratelimit"
	"execintel-gateway/middleware/ratelimit/domain"
	"execintel-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	PolicyExecutiveMetrics = "executive-metrics"
	PolicyExecutiveActions = "executive-actions"
)

// Policies são as cotas de cada rota.
type Policies struct {
	Metrics domain.Policy
	Actions domain.Policy
}

// DefaultPolicies: 60 req/min nas métricas, 30 req/min nas ações.
func DefaultPolicies() Policies {
	return Policies{
		Metrics: domain.Policy{Name: PolicyExecutiveMetrics, Limit: 60, Window: time.Minute},
		Actions: domain.Policy{Name: PolicyExecutiveActions, Limit: 30, Window: time.Minute},
	}
}

// StatsView expõe os contadores agregados de decisões.
type StatsView interface {
	Total() infra.Counters
	ByPolicy() map[string]infra.Counters
	ByRoute() map[string]infra.Counters
}

type Deps struct {
	Logger *slog.Logger
	// Limiter nil desliga o rate limit.
	Limiter    domain.Limiter
	Stats      domain.StatsStore
	Policies   Policies
	KeyHeader  string
	AddHeaders bool
	FailClosed bool

	Concurrency ratelimit.ConcurrencyOptions

	Source  MetricsSource
	Actions ActionSink
	// Gatherer serve /metrics; nil deixa a rota de fora.
	Gatherer prometheus.Gatherer
	// StatsView serve /debug/ratelimit; nil deixa a rota de fora.
	StatsView StatsView
	Now       func() time.Time
}

type Server struct {
	router   chi.Router
	logger   *slog.Logger
	source   MetricsSource
	actions  ActionSink
	stats    StatsView
	validate *validator.Validate
	now      func() time.Time
}

// NewServer monta o router. Policy inválida é erro aqui, não na primeira request.
func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Source == nil {
		d.Source = StaticSource{Now: d.Now}
	}
	if d.Actions == nil {
		d.Actions = NewMemoryActions(0)
	}

	s := &Server{
		logger:   d.Logger,
		source:   d.Source,
		actions:  d.Actions,
		stats:    d.StatsView,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      d.Now,
	}

	metricsLimit, err := s.rateLimit(d, d.Policies.Metrics, "GET /api/executive/metrics")
	if err != nil {
		return nil, err
	}
	actionsLimit, err := s.rateLimit(d, d.Policies.Actions, "POST /api/executive/actions")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", s.handleHealth)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.StatsView != nil {
		r.Get("/debug/ratelimit", s.handleRateLimitStats)
	}

	r.Route("/api/executive", func(r chi.Router) {
		r.Use(ratelimit.ConcurrencyMiddleware(d.Concurrency))
		r.With(metricsLimit).Get("/metrics", s.handleExecutiveMetrics)
		r.With(actionsLimit).Post("/actions", s.handleExecutiveAction)
	})

	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) rateLimit(d Deps, p domain.Policy, route string) (func(http.Handler) http.Handler, error) {
	if d.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	return ratelimit.New(ratelimit.Options{
		Limiter:             d.Limiter,
		Policy:              p,
		Stats:               d.Stats,
		Route:               route,
		KeyHeader:           d.KeyHeader,
		AddRateLimitHeaders: d.AddHeaders,
		FailClosed:          d.FailClosed,
		Logger:              d.Logger,
		Now:                 d.Now,
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
