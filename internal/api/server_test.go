package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"execintel-gateway/middleware/ratelimit/domain"
	"execintel-gateway/middleware/ratelimit/infra"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	clock := func() time.Time { return testNow }
	store, err := infra.NewWindowStore(infra.WithClock(clock))
	if err != nil {
		t.Fatalf("NewWindowStore() error: %v", err)
	}
	d := Deps{
		Limiter:    store,
		Policies:   DefaultPolicies(),
		AddHeaders: true,
		Now:        clock,
	}
	if mutate != nil {
		mutate(&d)
	}

	s, err := NewServer(d)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, ip, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if ip != "" {
		r.Header.Set("X-Forwarded-For", ip)
	}
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestExecutiveMetrics_ReturnsSnapshot(t *testing.T) {
	s := newTestServer(t, nil)

	w, resp := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success=true")
	}

	var m ExecutiveMetrics
	if err := json.Unmarshal(resp.Data, &m); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !m.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected generatedAt=%s, got %s", testNow, m.GeneratedAt)
	}
	if m.Portfolio.Companies == 0 {
		t.Fatalf("expected a non-empty portfolio snapshot")
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Fatalf("expected X-RateLimit-Limit=60, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "59" {
		t.Fatalf("expected X-RateLimit-Remaining=59, got %q", got)
	}
}

func TestExecutiveMetrics_LimitsSixtyPerMinute(t *testing.T) {
	s := newTestServer(t, nil)

	for i := 1; i <= 60; i++ {
		w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w, resp := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on request 61, got %d", w.Code)
	}
	if resp.Success || resp.Error != "Rate limit exceeded" {
		t.Fatalf("unexpected 429 body: %s", w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}

	// outro cliente tem cota própria
	if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.2", ""); w.Code != http.StatusOK {
		t.Fatalf("expected other client to be allowed, got %d", w.Code)
	}
}

func TestRoutes_HaveIndependentQuotas(t *testing.T) {
	s := newTestServer(t, func(d *Deps) {
		d.Policies.Metrics.Limit = 1
		d.Policies.Actions.Limit = 1
	})

	if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	body := `{"type":"flag_company","target":"acme"}`
	if w, _ := do(t, s, http.MethodPost, "/api/executive/actions", "10.0.0.1", body); w.Code != http.StatusAccepted {
		t.Fatalf("expected actions quota to be separate, got %d", w.Code)
	}
}

func TestExecutiveActions_QueuesValidAction(t *testing.T) {
	sink := NewMemoryActions(10)
	s := newTestServer(t, func(d *Deps) { d.Actions = sink })

	body := `{"type":"schedule_review","target":"  Acme Robotics ","note":"Q3 board"}`
	w, resp := do(t, s, http.MethodPost, "/api/executive/actions", "10.0.0.1", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", w.Code, w.Body.String())
	}

	var a Action
	if err := json.Unmarshal(resp.Data, &a); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if _, err := uuid.Parse(a.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", a.ID)
	}
	if a.Target != "Acme Robotics" || a.Status != "queued" || !a.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected action: %+v", a)
	}

	queued := sink.List()
	if len(queued) != 1 || queued[0].ID != a.ID {
		t.Fatalf("expected action to reach the sink, got %+v", queued)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "30" {
		t.Fatalf("expected X-RateLimit-Limit=30, got %q", got)
	}
}

func TestExecutiveActions_RejectsBadBodies(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty", "", "request body is required"},
		{"malformed", "{", "invalid JSON body"},
		{"unknown field", `{"type":"flag_company","target":"x","extra":1}`, "invalid JSON body"},
		{"missing target", `{"type":"flag_company"}`, "target is required"},
		{"bad type", `{"type":"delete_everything","target":"x"}`, "type must be one of: schedule_review flag_company export_report"},
		{"long note", `{"type":"export_report","target":"x","note":"` + strings.Repeat("n", 501) + `"}`, "note must be at most 500 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, resp := do(t, s, http.MethodPost, "/api/executive/actions", "10.0.0.9", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
			if resp.Success || resp.Error != tc.wantErr {
				t.Fatalf("expected error %q, got %+v", tc.wantErr, resp)
			}
		})
	}
}

type failingSink struct{}

func (failingSink) Enqueue(context.Context, Action) error { return errors.New("queue down") }

func TestExecutiveActions_SinkFailureIs500(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Actions = failingSink{} })

	w, resp := do(t, s, http.MethodPost, "/api/executive/actions", "10.0.0.1", `{"type":"flag_company","target":"x"}`)
	if w.Code != http.StatusInternalServerError || resp.Success {
		t.Fatalf("expected 500 failure, got %d (%s)", w.Code, w.Body.String())
	}
}

type failingSource struct{}

func (failingSource) ExecutiveMetrics(context.Context) (ExecutiveMetrics, error) {
	return ExecutiveMetrics{}, errors.New("upstream timeout")
}

func TestExecutiveMetrics_SourceFailureIs500(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Source = failingSource{} })

	w, resp := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")
	if w.Code != http.StatusInternalServerError || resp.Error != "Failed to load metrics" {
		t.Fatalf("expected 500, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestUnknownClientsShareQuota(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Policies.Metrics.Limit = 1 })

	if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second address-less caller to be limited, got %d", w.Code)
	}
}

func TestNewServer_RejectsInvalidPolicy(t *testing.T) {
	store, err := infra.NewWindowStore()
	if err != nil {
		t.Fatalf("NewWindowStore() error: %v", err)
	}
	p := DefaultPolicies()
	p.Actions.Window = 0

	if _, err := NewServer(Deps{Limiter: store, Policies: p}); !domain.IsInvalidArgument(err) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewServer_NilLimiterDisablesRateLimit(t *testing.T) {
	s, err := NewServer(Deps{})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	for i := 0; i < 100; i++ {
		if w, _ := do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := infra.NewPrometheusStatsStore(reg)
	s := newTestServer(t, func(d *Deps) {
		d.Stats = stats
		d.Gatherer = reg
	})

	w, resp := do(t, s, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected healthy, got %d (%s)", w.Code, w.Body.String())
	}

	do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")

	w, _ = do(t, s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `execintel_ratelimit_decisions_total{policy="executive-metrics",result="allowed"} 1`) {
		t.Fatalf("expected decision counter in exposition, got:\n%s", w.Body.String())
	}
}

func TestMemoryActions_KeepsMostRecent(t *testing.T) {
	m := NewMemoryActions(2)
	for _, id := range []string{"a", "b", "c"} {
		_ = m.Enqueue(context.Background(), Action{ID: id})
	}

	got := m.List()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("expected [b c], got %+v", got)
	}
}

func TestDebugRateLimitStats(t *testing.T) {
	mem := infra.NewMemoryStatsStore()
	s := newTestServer(t, func(d *Deps) {
		d.Policies.Metrics.Limit = 1
		d.Stats = mem
		d.StatsView = mem
	})

	do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")
	do(t, s, http.MethodGet, "/api/executive/metrics", "10.0.0.1", "")

	w, resp := do(t, s, http.MethodGet, "/debug/ratelimit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got struct {
		Total    infra.Counters            `json:"total"`
		ByPolicy map[string]infra.Counters `json:"byPolicy"`
		ByRoute  map[string]infra.Counters `json:"byRoute"`
	}
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.Total.Allowed != 1 || got.Total.Denied != 1 {
		t.Fatalf("expected 1 allowed / 1 denied, got %+v", got.Total)
	}
	if c := got.ByPolicy[PolicyExecutiveMetrics]; c.Allowed != 1 || c.Denied != 1 {
		t.Fatalf("unexpected per-policy counters %+v", got.ByPolicy)
	}
	if c := got.ByRoute["GET /api/executive/metrics"]; c.Allowed != 1 || c.Denied != 1 || len(got.ByRoute) != 1 {
		t.Fatalf("unexpected per-route counters %+v", got.ByRoute)
	}
}
