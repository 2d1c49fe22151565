package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "EXECINTEL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.debug_endpoints", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.backend", BackendMemory)
	v.SetDefault("ratelimit.shards", 32)
	v.SetDefault("ratelimit.max_keys", 100_000)
	v.SetDefault("ratelimit.cleanup_every", 2*time.Minute)
	v.SetDefault("ratelimit.idle_ttl", time.Duration(0))
	v.SetDefault("ratelimit.key_header", "")
	v.SetDefault("ratelimit.add_headers", true)
	v.SetDefault("ratelimit.fail_closed", false)
	v.SetDefault("ratelimit.policies.executive_metrics.limit", 60)
	v.SetDefault("ratelimit.policies.executive_metrics.window", time.Minute)
	v.SetDefault("ratelimit.policies.executive_actions.limit", 30)
	v.SetDefault("ratelimit.policies.executive_actions.window", time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "execintel")

	v.SetDefault("stats.redis_enabled", false)
	v.SetDefault("stats.prefix", "execintel:ratelimit:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_keys", false)

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", time.Duration(0))

	v.SetDefault("gateway.upstream_url", "")
	v.SetDefault("gateway.trust_xff", false)
	v.SetDefault("gateway.policy.limit", 60)
	v.SetDefault("gateway.policy.window", time.Minute)
}

// Load lê .env (se existir), o arquivo de configuração (se informado) e o
// ambiente, e valida o resultado.
func Load(configFile string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
