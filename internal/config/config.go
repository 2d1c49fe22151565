// Package config centraliza o carregamento de configurações da aplicação.
//
// Ordem de precedência: variáveis de ambiente (EXECINTEL_*, inclusive as vindas
// de um .env) > arquivo YAML (--config) > defaults.
package config

import (
	"time"

	"execintel-gateway/middleware/ratelimit/domain"
)

const (
	BackendMemory      = "memory"
	BackendTokenBucket = "token_bucket"
	BackendRedis       = "redis"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gte=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// DebugEndpoints liga /debug/ratelimit. Fica no mesmo listener da API.
	DebugEndpoints bool `mapstructure:"debug_endpoints"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type RateLimitConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	Backend      string         `mapstructure:"backend" validate:"oneof=memory token_bucket redis"`
	Shards       int            `mapstructure:"shards" validate:"gt=0"`
	MaxKeys      int            `mapstructure:"max_keys" validate:"gtefield=Shards"`
	CleanupEvery time.Duration  `mapstructure:"cleanup_every" validate:"gte=0"`
	IdleTTL      time.Duration  `mapstructure:"idle_ttl" validate:"gte=0"`
	KeyHeader    string         `mapstructure:"key_header"`
	AddHeaders   bool           `mapstructure:"add_headers"`
	FailClosed   bool           `mapstructure:"fail_closed"`
	Policies     PoliciesConfig `mapstructure:"policies"`
}

type PoliciesConfig struct {
	ExecutiveMetrics PolicyConfig `mapstructure:"executive_metrics"`
	ExecutiveActions PolicyConfig `mapstructure:"executive_actions"`
}

type PolicyConfig struct {
	Limit  int           `mapstructure:"limit" validate:"gt=0"`
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
}

// Policy converte para o tipo de domínio com o nome informado.
func (p PolicyConfig) Policy(name string) domain.Policy {
	return domain.Policy{Name: name, Limit: p.Limit, Window: p.Window}
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

type StatsConfig struct {
	RedisEnabled bool          `mapstructure:"redis_enabled"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Bucket       string        `mapstructure:"bucket" validate:"oneof=minute none"`
	TrackKeys    bool          `mapstructure:"track_keys"`
}

type ConcurrencyConfig struct {
	Max     int           `mapstructure:"max" validate:"gte=0"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type GatewayConfig struct {
	UpstreamURL string       `mapstructure:"upstream_url" validate:"omitempty,url"`
	TrustXFF    bool         `mapstructure:"trust_xff"`
	Policy      PolicyConfig `mapstructure:"policy"`
}

// NeedsRedis indica se algum componente configurado usa redis.
func (c Config) NeedsRedis() bool {
	return (c.RateLimit.Enabled && c.RateLimit.Backend == BackendRedis) || c.Stats.RedisEnabled
}
