package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"
)

// BucketStore é a alternativa em token bucket (x/time/rate): limit tokens por
// window, com reposição contínua. Não tem a rajada da virada de janela, mas
// guarda um *rate.Limiter por chave.
type BucketStore struct {
	cfg     storeConfig
	mu      sync.Mutex
	entries *simplelru.LRU[string, *bucketEntry]

	*janitor
}

type bucketEntry struct {
	lim      *rate.Limiter
	policy   domain.Policy
	lastSeen time.Time
}

var _ domain.Limiter = (*BucketStore)(nil)

func NewBucketStore(opts ...StoreOption) (*BucketStore, error) {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxKeys <= 0 {
		return nil, fmt.Errorf("%w: max keys must be > 0, got %d", domain.ErrInvalidArgument, cfg.maxKeys)
	}
	entries, err := simplelru.NewLRU[string, *bucketEntry](cfg.maxKeys, nil)
	if err != nil {
		return nil, err
	}
	return &BucketStore{cfg: cfg, entries: entries, janitor: newJanitor()}, nil
}

// Check implementa domain.Limiter.
func (s *BucketStore) Check(_ context.Context, key domain.Key, policy domain.Policy) (domain.Result, error) {
	if err := policy.Validate(); err != nil {
		return domain.Result{}, err
	}
	if key == "" {
		return domain.Result{}, fmt.Errorf("%w: empty key", domain.ErrInvalidArgument)
	}

	now := s.cfg.now()
	lim := s.limiter(string(key), policy, now)

	perToken := tokenInterval(policy)
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	missing := float64(policy.Limit) - tokens
	res := domain.Result{
		Allowed: allowed,
		Limit:   policy.Limit,
		ResetAt: now.Add(time.Duration(missing * perToken)),
	}
	if allowed {
		res.Remaining = int(tokens)
		return res, nil
	}
	res.NextAllowedAt = now.Add(time.Duration((1 - tokens) * perToken))
	return res, nil
}

func (s *BucketStore) limiter(key string, policy domain.Policy, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries.Get(key); ok && ent.policy.Limit == policy.Limit && ent.policy.Window == policy.Window {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(bucketRate(policy), policy.Limit)
	s.entries.Add(key, &bucketEntry{lim: lim, policy: policy, lastSeen: now})
	return lim
}

// bucketRate é limit/window em tokens por segundo. Não usa rate.Every(window/limit):
// a divisão inteira zera com limit maior que a janela em ns, e rate.Every(0) é Inf.
func bucketRate(p domain.Policy) rate.Limit {
	return rate.Limit(float64(p.Limit) / p.Window.Seconds())
}

// tokenInterval é o tempo de reposição de um token, em ns (float, sem truncar).
func tokenInterval(p domain.Policy) float64 {
	return float64(p.Window) / float64(p.Limit)
}

// Cleanup remove buckets parados. Um bucket só sai depois de max(idleTTL, window)
// sem uso, quando já estaria cheio de novo.
func (s *BucketStore) Cleanup() int {
	now := s.cfg.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for _, k := range s.entries.Keys() {
		ent, ok := s.entries.Peek(k)
		if !ok {
			continue
		}
		idle := s.cfg.idleTTL
		if ent.policy.Window > idle {
			idle = ent.policy.Window
		}
		if now.Sub(ent.lastSeen) >= idle {
			s.entries.Remove(k)
			cleaned++
		}
	}
	if cleaned > 0 {
		s.cfg.logger.Debug("token bucket cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", s.entries.Len())
	}
	return cleaned
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto ou com Stop.
func (s *BucketStore) StartJanitor(ctx context.Context) {
	s.janitor.start(ctx, s.cfg.cleanupEvery, func() { s.Cleanup() })
}

func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}
