package infra

import (
	"io"
	"log/slog"
	"time"
)

const (
	defaultShards  = 32
	defaultMaxKeys = 100_000
)

// storeConfig reúne as opções comuns das stores em memória.
type storeConfig struct {
	now          func() time.Time
	shards       int
	maxKeys      int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	logger       *slog.Logger
}

type StoreOption func(*storeConfig)

func defaultStoreConfig() storeConfig {
	return storeConfig{
		now:          time.Now,
		shards:       defaultShards,
		maxKeys:      defaultMaxKeys,
		idleTTL:      0,
		cleanupEvery: 2 * time.Minute,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithClock troca o relógio (testes). time.Now carrega leitura monotônica,
// então a contagem de janelas não sofre com ajustes do relógio de parede.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithShards define em quantos pedaços (cada um com seu lock) as chaves são divididas.
func WithShards(n int) StoreOption {
	return func(c *storeConfig) { c.shards = n }
}

// WithMaxKeys limita o total de chaves em memória. O limite é dividido entre
// os shards (cada um com seu LRU), então o descarte da chave usada há mais tempo
// acontece por shard. Se a divisão der menos de 16 chaves por shard, o
// WindowStore usa menos shards.
func WithMaxKeys(n int) StoreOption {
	return func(c *storeConfig) { c.maxKeys = n }
}

// WithIdleTTL é a folga, depois do fim da janela, antes de o janitor remover a chave.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(c *storeConfig) { c.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(c *storeConfig) { c.cleanupEvery = d }
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
