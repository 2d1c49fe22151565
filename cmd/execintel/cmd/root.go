// Package cmd contém os comandos da CLI execintel.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"execintel-gateway/internal/config"
	"execintel-gateway/internal/logging"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "execintel",
	Short: "Executive intelligence API with per-client rate limiting",
	Long: `execintel serves the executive dashboard API (metrics and actions), each route
behind its own fixed-window rate limit, or run as a rate-limiting reverse proxy.

Configuration is read from the optional --config file, a .env file in the
working directory and EXECINTEL_* environment variables.
Example: EXECINTEL_RATELIMIT_BACKEND=redis EXECINTEL_REDIS_ADDR=localhost:6379`,
	SilenceUsage: true,
}

// Execute roda o comando raiz.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
