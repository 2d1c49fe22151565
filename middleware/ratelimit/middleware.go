package ratelimit

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"execintel-gateway/middleware/ratelimit/application"
	"execintel-gateway/middleware/ratelimit/domain"
)

type Options struct {
	Limiter domain.Limiter
	// Policy é validada na construção; limit/window <= 0 é erro de programação.
	Policy domain.Policy
	Stats  domain.StatsStore
	// Route é o rótulo gravado nas stats (ex.: "GET /api/executive/metrics").
	// Vazio usa o nome da policy; o path da request nunca é gravado.
	Route string
	KeyFn KeyFunc
	// KeyHeader só é usado quando KeyFn é nil.
	KeyHeader           string
	AddRateLimitHeaders bool
	// FailClosed responde 503 quando o limiter falha (ex.: redis fora).
	// O padrão é deixar a request passar.
	FailClosed bool
	Logger     *slog.Logger
	Now        func() time.Time
}

// New monta o middleware. A chave de cada request vira
// "ratelimit:{policy}:{cliente}", então rotas com policies diferentes não
// compartilham contador.
func New(opts Options) (func(next http.Handler) http.Handler, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("rate limit policy %q: %w", opts.Policy.Name, err)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ForwardedKeyFunc(opts.KeyHeader)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Route == "" {
		opts.Route = opts.Policy.Name
	}

	svc := application.Service{Limiter: opts.Limiter, Now: opts.Now}
	log := opts.Logger.With("policy", opts.Policy.Name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := opts.KeyFn(r)

			dec, err := svc.Decide(r.Context(), domain.FormatKey(opts.Policy.Name, client), opts.Policy)
			if err != nil {
				log.Warn("rate limiter check failed", "client", client, "error", err)
				if opts.FailClosed {
					writeJSONError(w, http.StatusServiceUnavailable, msgLimiterUnavailable)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Client:    client,
					Policy:    opts.Policy.Name,
					Route:     opts.Route,
					Allowed:   dec.Allowed(),
					Remaining: dec.Result.Remaining,
					At:        opts.Now(),
				}); err != nil {
					log.Debug("rate limit stats not recorded", "error", err)
				}
			}

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w, dec.Result)
			}
			if !dec.Allowed() {
				log.Debug("rate limit exceeded", "client", client, "reset_at", dec.Result.ResetAt)
				writeRateLimited(w, dec.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// Middleware é New que entra em pânico com policy inválida, para uso na
// montagem das rotas.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	mw, err := New(opts)
	if err != nil {
		panic(err)
	}
	return mw
}
