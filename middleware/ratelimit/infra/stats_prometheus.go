package infra

import (
	"context"
	"errors"

	"execintel-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "execintel"

// PrometheusStatsStore expõe as decisões como contador por policy/resultado.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	return &PrometheusStatsStore{
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Rate limit decisions by policy and result",
			},
			[]string{"policy", "result"}, // result=allowed/denied
		),
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	result := "denied"
	if ev.Allowed {
		result = "allowed"
	}
	s.decisions.WithLabelValues(ev.Policy, result).Inc()
	return nil
}

// keyCounter é o que as stores em memória expõem para métricas.
type keyCounter interface {
	Len() int
}

// RegisterStoreMetrics publica o número de chaves em memória e, quando a store
// tiver, o total de descartes por falta de espaço.
func RegisterStoreMetrics(reg prometheus.Registerer, store keyCounter) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ratelimit",
			Name:      "keys",
			Help:      "Number of rate limit keys held in memory",
		},
		func() float64 { return float64(store.Len()) },
	)
	if ev, ok := store.(interface{ Evicted() uint64 }); ok {
		factory.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ratelimit",
				Name:      "evictions_total",
				Help:      "Rate limit keys evicted because the key cap was reached",
			},
			func() float64 { return float64(ev.Evicted()) },
		)
	}
}

// MultiStats repassa o evento para várias stores; erros são juntados.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
