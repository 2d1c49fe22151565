package application

import (
	"context"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas valida a policy,
// consulta o Limiter e calcula o Retry-After quando bloquear.
type Service struct {
	Limiter domain.Limiter
	// Now é o relógio usado para o Retry-After. Se nil, usa time.Now.
	Now func() time.Time
}

func (s Service) Decide(ctx context.Context, key domain.Key, policy domain.Policy) (domain.Decision, error) {
	if err := policy.Validate(); err != nil {
		return domain.Decision{}, err
	}
	if s.Limiter == nil {
		return domain.Decision{Result: domain.Result{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}}, nil
	}

	res, err := s.Limiter.Check(ctx, key, policy)
	if err != nil {
		return domain.Decision{}, err
	}
	if res.Allowed {
		return domain.Decision{Result: res}, nil
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return domain.Decision{Result: res, RetryAfter: res.RetryAfter(now)}, nil
}
