package domain

import (
	"context"
	"time"
)

// StatsEvent registra uma decisão do rate limit.
//
// Client é o identificador bruto do cliente (IP/header), sem o prefixo da policy.
// Route é um rótulo fixo da rota registrada (ex.: "GET /api/executive/metrics"),
// nunca o path da request: o cliente não pode criar rótulos novos.
type StatsEvent struct {
	Client  string
	Policy  string
	Route   string
	Allowed bool

	Remaining int

	At time.Time
}

// StatsStore persiste estatísticas de decisões.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
