package api

import (
	"context"
	"time"
)

// ExecutiveMetrics é o resumo servido ao dashboard executivo.
type ExecutiveMetrics struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Portfolio   PortfolioSummary `json:"portfolio"`
	Funding     FundingSummary   `json:"funding"`
	ThreatIntel ThreatSummary    `json:"threatIntel"`
	Patents     PatentSummary    `json:"patents"`
}

type PortfolioSummary struct {
	Companies       int     `json:"companies"`
	TotalValueUSD   int64   `json:"totalValueUsd"`
	QuarterGrowth   float64 `json:"quarterGrowthPct"`
	AtRiskCompanies int     `json:"atRiskCompanies"`
}

type FundingSummary struct {
	ActiveDeals       int   `json:"activeDeals"`
	DeployedYTDUSD    int64 `json:"deployedYtdUsd"`
	DryPowderUSD      int64 `json:"dryPowderUsd"`
	PipelineCompanies int   `json:"pipelineCompanies"`
}

type ThreatSummary struct {
	OpenAlerts     int `json:"openAlerts"`
	CriticalAlerts int `json:"criticalAlerts"`
	TrackedActors  int `json:"trackedActors"`
}

type PatentSummary struct {
	Filed   int `json:"filed"`
	Granted int `json:"granted"`
	Pending int `json:"pending"`
}

// MetricsSource fornece os números do dashboard. A integração real (Crunchbase,
// BrightData) fica fora deste serviço.
type MetricsSource interface {
	ExecutiveMetrics(ctx context.Context) (ExecutiveMetrics, error)
}

// StaticSource devolve sempre o mesmo snapshot, carimbado com o relógio.
type StaticSource struct {
	Now func() time.Time
}

func (s StaticSource) ExecutiveMetrics(context.Context) (ExecutiveMetrics, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return ExecutiveMetrics{
		GeneratedAt: now().UTC(),
		Portfolio:   PortfolioSummary{Companies: 42, TotalValueUSD: 1_850_000_000, QuarterGrowth: 6.4, AtRiskCompanies: 3},
		Funding:     FundingSummary{ActiveDeals: 7, DeployedYTDUSD: 212_000_000, DryPowderUSD: 340_000_000, PipelineCompanies: 18},
		ThreatIntel: ThreatSummary{OpenAlerts: 23, CriticalAlerts: 2, TrackedActors: 57},
		Patents:     PatentSummary{Filed: 128, Granted: 91, Pending: 37},
	}, nil
}
