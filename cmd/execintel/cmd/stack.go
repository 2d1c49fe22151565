package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"execintel-gateway/internal/config"
	"execintel-gateway/middleware/ratelimit/domain"
	"execintel-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// stack reúne limiter, stats e registry montados a partir da config.
type stack struct {
	limiter  domain.Limiter
	stats    domain.StatsStore
	summary  *infra.MemoryStatsStore
	registry *prometheus.Registry

	rdb   *redis.Client
	stops []func()
}

func buildStack(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{registry: prometheus.NewRegistry()}
	st.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.NeedsRedis() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		st.rdb = rdb
	}

	if cfg.RateLimit.Enabled {
		lim, err := st.newLimiter(ctx, cfg, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.limiter = lim
	}

	st.summary = infra.NewMemoryStatsStore()
	stats := infra.MultiStats{st.summary, infra.NewPrometheusStatsStore(st.registry)}
	if cfg.Stats.RedisEnabled {
		stats = append(stats, infra.NewRedisStatsStore(st.rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackClients(cfg.Stats.TrackKeys),
		))
	}
	st.stats = stats

	logger.Info("rate limit stack ready",
		"enabled", cfg.RateLimit.Enabled,
		"backend", cfg.RateLimit.Backend,
		"redis_stats", cfg.Stats.RedisEnabled)
	return st, nil
}

func (st *stack) newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (domain.Limiter, error) {
	rl := cfg.RateLimit
	opts := []infra.StoreOption{
		infra.WithShards(rl.Shards),
		infra.WithMaxKeys(rl.MaxKeys),
		infra.WithIdleTTL(rl.IdleTTL),
		infra.WithCleanupEvery(rl.CleanupEvery),
		infra.WithLogger(logger),
	}

	switch rl.Backend {
	case config.BackendRedis:
		return infra.NewRedisWindowStore(st.rdb, infra.WithWindowPrefix(cfg.Redis.Prefix)), nil

	case config.BackendTokenBucket:
		s, err := infra.NewBucketStore(opts...)
		if err != nil {
			return nil, fmt.Errorf("token bucket store: %w", err)
		}
		infra.RegisterStoreMetrics(st.registry, s)
		s.StartJanitor(ctx)
		st.stops = append(st.stops, s.Stop)
		return s, nil

	default:
		s, err := infra.NewWindowStore(opts...)
		if err != nil {
			return nil, fmt.Errorf("window store: %w", err)
		}
		infra.RegisterStoreMetrics(st.registry, s)
		s.StartJanitor(ctx)
		st.stops = append(st.stops, s.Stop)
		return s, nil
	}
}

// Close para os janitors e fecha o redis.
func (st *stack) Close() {
	for _, stop := range st.stops {
		stop()
	}
	st.stops = nil
	if st.rdb != nil {
		_ = st.rdb.Close()
		st.rdb = nil
	}
}
