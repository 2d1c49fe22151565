package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	res   domain.Result
	err   error
	calls int
}

func (f *fakeLimiter) Check(context.Context, domain.Key, domain.Policy) (domain.Result, error) {
	f.calls++
	return f.res, f.err
}

var testPolicy = domain.Policy{Name: "p", Limit: 2, Window: time.Second}

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k", testPolicy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed() {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_RejectsInvalidPolicyBeforeLimiter(t *testing.T) {
	lim := &fakeLimiter{res: domain.Result{Allowed: true}}
	svc := Service{Limiter: lim}

	_, err := svc.Decide(context.Background(), "k", domain.Policy{Limit: 0, Window: time.Second})
	if !domain.IsInvalidArgument(err) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if lim.calls != 0 {
		t.Fatalf("expected limiter not to be called, got %d calls", lim.calls)
	}
}

func TestService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	lim := &fakeLimiter{res: domain.Result{Allowed: true, Limit: 2, Remaining: 1}}
	svc := Service{Limiter: lim}

	dec, err := svc.Decide(context.Background(), "k", testPolicy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed() || dec.Result.Remaining != 1 {
		t.Fatalf("unexpected decision %+v", dec)
	}
}

func TestService_Decide_BlocksWithRetryAfterFromReset(t *testing.T) {
	now := time.Unix(100, 0)
	lim := &fakeLimiter{res: domain.Result{Allowed: false, Limit: 2, ResetAt: now.Add(2500 * time.Millisecond)}}
	svc := Service{Limiter: lim, Now: func() time.Time { return now }}

	dec, err := svc.Decide(context.Background(), "k", testPolicy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed() {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 3*time.Second {
		t.Fatalf("expected RetryAfter=3s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PropagatesLimiterError(t *testing.T) {
	boom := errors.New("redis down")
	svc := Service{Limiter: &fakeLimiter{err: boom}}

	_, err := svc.Decide(context.Background(), "k", testPolicy)
	if !errors.Is(err, boom) {
		t.Fatalf("expected limiter error, got %v", err)
	}
}
