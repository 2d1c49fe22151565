package infra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// WindowStore é o limiter de janela fixa em memória.
//
// As chaves são distribuídas em shards (xxhash da chave); cada shard tem um
// mutex e um LRU limitado. Toda a checagem de uma chave acontece com o lock do
// shard, então requisições concorrentes da mesma chave nunca dividem a última vaga.
//
// Na virada da janela podem passar até 2×limit requisições em sequência; é o
// custo conhecido da janela fixa.
type WindowStore struct {
	cfg     storeConfig
	shards  []*windowShard
	evicted atomic.Uint64

	*janitor
}

const minKeysPerShard = 16

type windowShard struct {
	mu       sync.Mutex
	entries  *simplelru.LRU[string, *windowEntry]
	capacity int
}

type windowEntry struct {
	count       int
	windowStart time.Time
	window      time.Duration
	lastSeen    time.Time
}

var _ domain.Limiter = (*WindowStore)(nil)

func NewWindowStore(opts ...StoreOption) (*WindowStore, error) {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shards <= 0 {
		return nil, fmt.Errorf("%w: shards must be > 0, got %d", domain.ErrInvalidArgument, cfg.shards)
	}
	if cfg.maxKeys < cfg.shards {
		return nil, fmt.Errorf("%w: max keys (%d) must be >= shards (%d)", domain.ErrInvalidArgument, cfg.maxKeys, cfg.shards)
	}

	shards := effectiveShards(cfg.shards, cfg.maxKeys)
	s := &WindowStore{
		cfg:     cfg,
		shards:  make([]*windowShard, shards),
		janitor: newJanitor(),
	}
	for i := range s.shards {
		capacity := shardCapacity(cfg.maxKeys, shards, i)
		entries, err := simplelru.NewLRU[string, *windowEntry](capacity, nil)
		if err != nil {
			return nil, err
		}
		s.shards[i] = &windowShard{entries: entries, capacity: capacity}
	}
	return s, nil
}

// effectiveShards reduz o número de shards até cada um caber pelo menos
// minKeysPerShard chaves. Shards pequenos demais descartariam chaves vivas
// com o total ainda longe de maxKeys.
func effectiveShards(shards, maxKeys int) int {
	if maxKeys/shards >= minKeysPerShard {
		return shards
	}
	return max(1, maxKeys/minKeysPerShard)
}

// shardCapacity divide maxKeys entre os shards; o resto vai para os primeiros,
// então a soma é exatamente maxKeys.
func shardCapacity(maxKeys, shards, i int) int {
	c := maxKeys / shards
	if i < maxKeys%shards {
		c++
	}
	return c
}

// Check implementa domain.Limiter.
//
//  1. busca (ou cria) a entrada da chave
//  2. se now - windowStart >= window, reinicia a janela
//  3. se count >= limit, nega sem incrementar
//  4. senão incrementa e permite
func (s *WindowStore) Check(_ context.Context, key domain.Key, policy domain.Policy) (domain.Result, error) {
	if err := policy.Validate(); err != nil {
		return domain.Result{}, err
	}
	k := string(key)
	if k == "" {
		return domain.Result{}, fmt.Errorf("%w: empty key", domain.ErrInvalidArgument)
	}

	now := s.cfg.now()
	sh := s.shardFor(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	ent, ok := sh.entries.Get(k)
	if !ok {
		ent = &windowEntry{windowStart: now}
		if sh.entries.Add(k, ent) {
			s.evicted.Add(1)
		}
	}
	ent.lastSeen = now
	ent.window = policy.Window

	if now.Sub(ent.windowStart) >= policy.Window {
		ent.windowStart = now
		ent.count = 0
	}

	resetAt := ent.windowStart.Add(policy.Window)
	if ent.count >= policy.Limit {
		return domain.Result{Allowed: false, Limit: policy.Limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	ent.count++
	return domain.Result{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - ent.count,
		ResetAt:   resetAt,
	}, nil
}

func (s *WindowStore) shardFor(key string) *windowShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Cleanup remove as entradas cuja janela terminou há mais de idleTTL.
// Uma entrada expirada se comporta igual a uma ausente, então remover não muda
// nenhuma decisão. Retorna quantas chaves saíram.
func (s *WindowStore) Cleanup() int {
	now := s.cfg.now()
	cleaned := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, k := range sh.entries.Keys() {
			ent, ok := sh.entries.Peek(k)
			if !ok {
				continue
			}
			if !now.Before(ent.windowStart.Add(ent.window).Add(s.cfg.idleTTL)) {
				sh.entries.Remove(k)
				cleaned++
			}
		}
		sh.mu.Unlock()
	}

	if cleaned > 0 {
		s.cfg.logger.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", s.Len())
	}
	return cleaned
}

// StartJanitor inicia a limpeza periódica. Pare cancelando o ctx ou com Stop.
func (s *WindowStore) StartJanitor(ctx context.Context) {
	s.janitor.start(ctx, s.cfg.cleanupEvery, func() { s.Cleanup() })
}

// Len retorna quantas chaves estão em memória.
func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += sh.entries.Len()
		sh.mu.Unlock()
	}
	return n
}

// Evicted conta as chaves descartadas por falta de espaço (WithMaxKeys).
func (s *WindowStore) Evicted() uint64 { return s.evicted.Load() }
