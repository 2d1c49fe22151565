package infra

import (
	"context"
	"sync"

	"execintel-gateway/middleware/ratelimit/domain"
)

const (
	defaultStatsMaxEntries = 1000

	// OverflowLabel agrupa os rótulos que chegaram depois do limite de entradas.
	OverflowLabel = "_other"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda contadores em memória e não expira nada.
// Cada mapa (policy, rota, cliente) tem no máximo maxEntries rótulos; o
// excedente é somado em OverflowLabel, então a memória fica limitada mesmo
// com rótulos vindos do cliente.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byPolicy map[string]Counters
	byRoute  map[string]Counters
	byClient map[string]Counters

	maxEntries   int
	trackClients bool
}

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackClients liga a contagem por cliente (cuidado com cardinalidade).
func WithTrackClients(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackClients = track }
}

// WithStatsMaxEntries limita quantos rótulos cada mapa guarda. n <= 0 mantém o padrão.
func WithStatsMaxEntries(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byPolicy:   make(map[string]Counters),
		byRoute:    make(map[string]Counters),
		byClient:   make(map[string]Counters),
		maxEntries: defaultStatsMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	s.bump(s.byPolicy, ev.Policy, ev.Allowed)
	if ev.Route != "" {
		s.bump(s.byRoute, ev.Route, ev.Allowed)
	}
	if s.trackClients {
		s.bump(s.byClient, ev.Client, ev.Allowed)
	}
	return nil
}

// bump soma no rótulo k; rótulo novo com o mapa cheio vai para OverflowLabel.
// Uma vaga fica reservada para o próprio OverflowLabel.
func (s *MemoryStatsStore) bump(m map[string]Counters, k string, allowed bool) {
	if _, ok := m[k]; !ok && len(m) >= s.maxEntries-1 {
		k = OverflowLabel
	}
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByPolicy() map[string]Counters { return s.snapshot(s.byPolicy) }
func (s *MemoryStatsStore) ByRoute() map[string]Counters  { return s.snapshot(s.byRoute) }
func (s *MemoryStatsStore) ByClient() map[string]Counters { return s.snapshot(s.byClient) }

func (s *MemoryStatsStore) snapshot(m map[string]Counters) map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
