package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"execintel-gateway/internal/config"
	"execintel-gateway/middleware/ratelimit"

	"github.com/spf13/cobra"
)

const gatewayPolicyName = "gateway"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run a rate-limiting reverse proxy in front of gateway.upstream_url",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := buildStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		h, err := gatewayHandler(cfg, st, logger)
		if err != nil {
			return err
		}

		ln, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
		logger.Info("gateway listening",
			"addr", ln.Addr().String(),
			"upstream", cfg.Gateway.UpstreamURL,
			"policy", cfg.Gateway.Policy.Policy(gatewayPolicyName).String(),
			"trust_xff", cfg.Gateway.TrustXFF,
			"concurrency_max", cfg.Concurrency.Max)

		return runHTTPServer(ctx, newHTTPServer(cfg.Server, h), ln, cfg.Server, logger)
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// gatewayHandler monta proxy -> concorrência -> rate limit, nessa ordem de dentro para fora.
func gatewayHandler(cfg config.Config, st *stack, logger *slog.Logger) (http.Handler, error) {
	if cfg.Gateway.UpstreamURL == "" {
		return nil, errors.New("gateway.upstream_url is required")
	}
	target, err := url.Parse(cfg.Gateway.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway.upstream_url: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Concurrency.Timeout,
	})(h)

	if st.limiter != nil {
		mw, err := ratelimit.New(ratelimit.Options{
			Limiter:             st.limiter,
			Policy:              cfg.Gateway.Policy.Policy(gatewayPolicyName),
			Stats:               st.stats,
			KeyFn:               ratelimit.DefaultKeyFunc(cfg.RateLimit.KeyHeader, cfg.Gateway.TrustXFF),
			AddRateLimitHeaders: cfg.RateLimit.AddHeaders,
			FailClosed:          cfg.RateLimit.FailClosed,
			Logger:              logger,
		})
		if err != nil {
			return nil, err
		}
		h = mw(h)
	}
	return h, nil
}
