package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"execintel-gateway/internal/api"
	"execintel-gateway/internal/config"
	"execintel-gateway/middleware/ratelimit"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the executive dashboard API",
	Long: `Start the executive dashboard API.

Routes:
  GET  /api/executive/metrics   60 requests/min per client (executive-metrics)
  POST /api/executive/actions   30 requests/min per client (executive-actions)
  GET  /healthz
  GET  /metrics                 Prometheus exposition`,
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

		d := apiDeps(cfg, st)
		d.Logger = logger
		srv, err := api.NewServer(d)
		if err != nil {
			return err
		}

		ln, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
		logger.Info("executive API listening",
			"addr", ln.Addr().String(),
			"metrics_policy", d.Policies.Metrics.String(),
			"actions_policy", d.Policies.Actions.String())

		return runHTTPServer(ctx, newHTTPServer(cfg.Server, srv), ln, cfg.Server, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// apiDeps traduz a config para as dependências do router.
func apiDeps(cfg config.Config, st *stack) api.Deps {
	pc := cfg.RateLimit.Policies
	d := api.Deps{
		Limiter: st.limiter,
		Stats:   st.stats,
		Policies: api.Policies{
			Metrics: pc.ExecutiveMetrics.Policy(api.PolicyExecutiveMetrics),
			Actions: pc.ExecutiveActions.Policy(api.PolicyExecutiveActions),
		},
		KeyHeader:  cfg.RateLimit.KeyHeader,
		AddHeaders: cfg.RateLimit.AddHeaders,
		FailClosed: cfg.RateLimit.FailClosed,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			AcquireTimeout: cfg.Concurrency.Timeout,
		},
		Gatherer: st.registry,
	}
	if cfg.Server.DebugEndpoints {
		d.StatsView = st.summary
	}
	return d
}
