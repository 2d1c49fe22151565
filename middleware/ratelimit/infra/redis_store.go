package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// windowScript executa a janela fixa inteira dentro do redis (atômico por chave).
// Requisições negadas não incrementam o contador.
//
// Retorna {allowed, count, ttl_ms}.
var windowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  count = 0
  ttl = window
end
if count >= limit then
  return {0, count, ttl}
end
if count == 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
else
  redis.call('INCR', KEYS[1])
end
return {1, count + 1, ttl}
`)

// RedisWindowStore é a janela fixa compartilhada entre instâncias via redis.
// O fim da janela é o TTL da chave, então o relógio que manda é o do redis.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithWindowClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisWindowStore) {
		if now != nil {
			s.now = now
		}
	}
}

var _ domain.Limiter = (*RedisWindowStore)(nil)

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check implementa domain.Limiter.
func (s *RedisWindowStore) Check(ctx context.Context, key domain.Key, policy domain.Policy) (domain.Result, error) {
	if err := policy.Validate(); err != nil {
		return domain.Result{}, err
	}
	if policy.Window < time.Millisecond {
		return domain.Result{}, fmt.Errorf("%w: window must be >= 1ms for redis, got %s", domain.ErrInvalidArgument, policy.Window)
	}
	if key == "" {
		return domain.Result{}, fmt.Errorf("%w: empty key", domain.ErrInvalidArgument)
	}

	storeKey := string(key)
	if s.prefix != "" {
		storeKey = s.prefix + ":" + storeKey
	}

	vals, err := windowScript.Run(ctx, s.rdb, []string{storeKey}, policy.Limit, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Result{}, fmt.Errorf("redis window check: %w", err)
	}
	if len(vals) != 3 {
		return domain.Result{}, fmt.Errorf("redis window check: unexpected reply %v", vals)
	}

	allowed := vals[0] == 1
	count := int(vals[1])
	resetAt := s.now().Add(time.Duration(vals[2]) * time.Millisecond)

	if !allowed {
		return domain.Result{Allowed: false, Limit: policy.Limit, Remaining: 0, ResetAt: resetAt}, nil
	}
	return domain.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
		ResetAt:   resetAt,
	}, nil
}
