package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Key string

// UnknownClient é a chave usada quando não dá para descobrir o endereço do cliente.
// Todos os clientes sem endereço compartilham a mesma cota.
const UnknownClient = "unknown"

const keyPrefix = "ratelimit"

// FormatKey monta a chave de armazenamento: "ratelimit:{scope}:{client}".
// O scope normalmente é o nome da policy, assim rotas com limites diferentes
// não dividem o mesmo contador para o mesmo cliente.
func FormatKey(scope, client string) Key {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "global"
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = UnknownClient
	}
	return Key(keyPrefix + ":" + scope + ":" + client)
}

// Policy descreve quantas requisições uma chave pode fazer por janela.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Validate falha rápido para limit/window <= 0. Nunca ajusta valores.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidArgument, p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidArgument, p.Window)
	}
	return nil
}

// String formata como "executive-metrics 60/1m0s".
func (p Policy) String() string {
	return fmt.Sprintf("%s %d/%s", p.Name, p.Limit, p.Window)
}

// Result é a resposta de uma checagem.
type Result struct {
	Allowed bool
	Limit   int
	// Remaining é o que sobra na janela depois desta requisição (0 quando negada).
	Remaining int
	// ResetAt é o fim da janela ativa (windowStart + window).
	ResetAt time.Time
	// NextAllowedAt, quando preenchido, é o instante em que uma nova requisição
	// voltaria a passar (token bucket). Zero significa ResetAt.
	NextAllowedAt time.Time
}

// RetryAfter arredonda para cima, em segundos inteiros, o tempo até a próxima
// vaga. Nunca retorna menos que 1s.
func (r Result) RetryAfter(now time.Time) time.Duration {
	at := r.ResetAt
	if !r.NextAllowedAt.IsZero() {
		at = r.NextAllowedAt
	}
	d := at.Sub(now)
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

// Limiter decide, para uma chave e uma policy, se a requisição atual passa.
//
// Implementações precisam tratar o read-modify-write de cada chave como seção
// crítica: duas chamadas concorrentes não podem ambas ver a última vaga.
type Limiter interface {
	Check(ctx context.Context, key Key, policy Policy) (Result, error)
}

type Decision struct {
	Result Result
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool { return d.Result.Allowed }
