package services

import (
	"context"
	"time"

	"helios-ledger/interfaces"
)

// Distributions is the closed set of distribution metrics that may be served.
// Anything else found in storage is dropped by ProjectDistributions.
type Distributions struct {
	SharpeRatio *interfaces.DistributionStats `json:"sharpe_ratio,omitempty"`
	PnLPct      *interfaces.DistributionStats `json:"pnl_pct,omitempty"`
	MaxDrawdown *interfaces.DistributionStats `json:"max_drawdown,omitempty"`
	WinRate     *interfaces.DistributionStats `json:"win_rate,omitempty"`
}

// ProjectDistributions copies the whitelisted keys of raw into a Distributions.
// It returns nil when none of them is present.
func ProjectDistributions(raw map[string]interfaces.DistributionStats) *Distributions {
	if len(raw) == 0 {
		return nil
	}

	pick := func(key string) *interfaces.DistributionStats {
		stats, ok := raw[key]
		if !ok {
			return nil
		}
		return &stats
	}

	d := &Distributions{
		SharpeRatio: pick("sharpe_ratio"),
		PnLPct:      pick("pnl_pct"),
		MaxDrawdown: pick("max_drawdown"),
		WinRate:     pick("win_rate"),
	}
	if d.SharpeRatio == nil && d.PnLPct == nil && d.MaxDrawdown == nil && d.WinRate == nil {
		return nil
	}
	return d
}

// OptimizationRunView is the served form of an optimization run
type OptimizationRunView struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	RunDate           time.Time      `json:"run_date"`
	Symbol            string         `json:"symbol"`
	Interval          string         `json:"interval"`
	TotalCombinations int            `json:"total_combinations"`
	PassedConstraints int            `json:"passed_constraints"`
	BestSharpe        float64        `json:"best_sharpe"`
	BestROIPct        float64        `json:"best_roi_pct"`
	BestDrawdownPct   float64        `json:"best_drawdown_pct"`
	BacktestStart     string         `json:"backtest_start,omitempty"`
	BacktestEnd       string         `json:"backtest_end,omitempty"`
	NumCandles        int            `json:"num_candles,omitempty"`
	Distributions     *Distributions `json:"distributions,omitempty"`
}

// OptimizationService serves parameter-sweep records
type OptimizationService struct {
	source interfaces.DataSource
}

func NewOptimizationService(source interfaces.DataSource) *OptimizationService {
	return &OptimizationService{source: source}
}

// ListOptimizationRuns returns every run, newest first
func (s *OptimizationService) ListOptimizationRuns(ctx context.Context) ([]*OptimizationRunView, error) {
	runs, err := s.source.ListOptimizationRuns(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*OptimizationRunView, len(runs))
	for i, run := range runs {
		views[i] = &OptimizationRunView{
			ID:                run.ID,
			Name:              run.Name,
			RunDate:           run.RunDate.UTC(),
			Symbol:            run.Symbol,
			Interval:          run.Interval,
			TotalCombinations: run.TotalCombinations,
			PassedConstraints: run.PassedConstraints,
			BestSharpe:        run.BestSharpe,
			BestROIPct:        run.BestROIPct,
			BestDrawdownPct:   run.BestDrawdownPct,
			BacktestStart:     run.BacktestStart,
			BacktestEnd:       run.BacktestEnd,
			NumCandles:        run.NumCandles,
			Distributions:     ProjectDistributions(run.RawDistributions),
		}
	}
	return views, nil
}
