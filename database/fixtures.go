package database

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/BurntSushi/toml"
)

//go:embed fixtures/demo.toml
var fixtureFS embed.FS

type fixtureFile struct {
	StartingBalance  float64            `toml:"starting_balance"`
	Markets          []fixtureMarket    `toml:"markets"`
	Trades           []fixtureTrade     `toml:"trades"`
	Equity           fixtureEquity      `toml:"equity"`
	OptimizationRuns []fixtureOptimizer `toml:"optimization_runs"`
}

type fixtureMarket struct {
	ID         string `toml:"id"`
	Symbol     string `toml:"symbol"`
	Interval   string `toml:"interval"`
	IsActive   bool   `toml:"is_active"`
	ConfigHash string `toml:"config_hash"`
}

type fixtureTrade struct {
	ID            string  `toml:"id"`
	EntryHoursAgo float64 `toml:"entry_hours_ago"`
	ExitHoursAgo  float64 `toml:"exit_hours_ago"`
	Direction     string  `toml:"direction"`
	EntryPrice    float64 `toml:"entry_price"`
	ExitPrice     float64 `toml:"exit_price"`
	PnLPct        float64 `toml:"pnl_pct"`
	ExitReason    string  `toml:"exit_reason"`
}

type fixtureEquity struct {
	DailyReturns []float64 `toml:"daily_returns"`
}

type fixtureOptimizer struct {
	ID                string                                  `toml:"id"`
	Name              string                                  `toml:"name"`
	RunDaysAgo        int                                     `toml:"run_days_ago"`
	Symbol            string                                  `toml:"symbol"`
	Interval          string                                  `toml:"interval"`
	TotalCombinations int                                     `toml:"total_combinations"`
	PassedConstraints int                                     `toml:"passed_constraints"`
	BestSharpe        float64                                 `toml:"best_sharpe"`
	BestROIPct        float64                                 `toml:"best_roi_pct"`
	BestDrawdownPct   float64                                 `toml:"best_drawdown_pct"`
	BacktestStart     string                                  `toml:"backtest_start"`
	BacktestEnd       string                                  `toml:"backtest_end"`
	NumCandles        int                                     `toml:"num_candles"`
	Distributions     map[string]interfaces.DistributionStats `toml:"distributions"`
}

// FixtureStore serves a static demonstration ledger. It implements
// DataSource only; it can never be written to.
type FixtureStore struct {
	trades    []*interfaces.Trade
	snapshots []*interfaces.EquitySnapshot
	runs      []*interfaces.OptimizationRun
	markets   []*interfaces.Market
}

var _ interfaces.DataSource = (*FixtureStore)(nil)

// NewFixtureStore loads the embedded demonstration data anchored at now
func NewFixtureStore(now time.Time) (*FixtureStore, error) {
	raw, err := fixtureFS.ReadFile("fixtures/demo.toml")
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var file fixtureFile
	if _, err := toml.Decode(string(raw), &file); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	now = now.UTC()
	store := &FixtureStore{}

	for _, m := range file.Markets {
		store.markets = append(store.markets, &interfaces.Market{
			ID:         m.ID,
			Symbol:     m.Symbol,
			Interval:   m.Interval,
			IsActive:   m.IsActive,
			ConfigHash: m.ConfigHash,
		})
	}

	for _, t := range file.Trades {
		store.trades = append(store.trades, &interfaces.Trade{
			ID:         t.ID,
			EntryTime:  now.Add(-hours(t.EntryHoursAgo)),
			ExitTime:   now.Add(-hours(t.ExitHoursAgo)),
			Direction:  interfaces.Direction(t.Direction),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			PnLPct:     t.PnLPct,
			ExitReason: t.ExitReason,
		})
	}
	sort.SliceStable(store.trades, func(i, j int) bool {
		return store.trades[i].ExitTime.Before(store.trades[j].ExitTime)
	})

	// One snapshot per return, the last one dated today.
	today := now.Truncate(24 * time.Hour)
	balance := file.StartingBalance
	n := len(file.Equity.DailyReturns)
	for i, pct := range file.Equity.DailyReturns {
		balance *= 1 + pct/100
		store.snapshots = append(store.snapshots, &interfaces.EquitySnapshot{
			Date:         today.AddDate(0, 0, i-n+1),
			CloseBalance: numeric.Round(balance, 2),
			DailyPnLPct:  pct,
		})
	}

	for _, r := range file.OptimizationRuns {
		store.runs = append(store.runs, &interfaces.OptimizationRun{
			ID:                r.ID,
			Name:              r.Name,
			RunDate:           now.AddDate(0, 0, -r.RunDaysAgo),
			Symbol:            r.Symbol,
			Interval:          r.Interval,
			TotalCombinations: r.TotalCombinations,
			PassedConstraints: r.PassedConstraints,
			BestSharpe:        r.BestSharpe,
			BestROIPct:        r.BestROIPct,
			BestDrawdownPct:   r.BestDrawdownPct,
			BacktestStart:     r.BacktestStart,
			BacktestEnd:       r.BacktestEnd,
			NumCandles:        r.NumCandles,
			RawDistributions:  r.Distributions,
		})
	}
	sort.SliceStable(store.runs, func(i, j int) bool {
		return store.runs[i].RunDate.After(store.runs[j].RunDate)
	})

	return store, nil
}

// ListTrades returns the demonstration trades tagged with the requested source
func (f *FixtureStore) ListTrades(_ context.Context, q interfaces.TradeQuery) ([]*interfaces.Trade, error) {
	trades := make([]*interfaces.Trade, 0, len(f.trades))
	for _, t := range f.trades {
		if !q.ExitedBefore.IsZero() && !t.ExitTime.Before(q.ExitedBefore) {
			continue
		}
		cp := *t
		cp.Source = q.Source
		trades = append(trades, &cp)
	}

	if q.NewestFirst {
		for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
			trades[i], trades[j] = trades[j], trades[i]
		}
	}
	if q.Limit > 0 && len(trades) > q.Limit {
		trades = trades[:q.Limit]
	}
	return trades, nil
}

// ListEquitySnapshots returns the last days demonstration snapshots
func (f *FixtureStore) ListEquitySnapshots(_ context.Context, _ interfaces.Source, days int) ([]*interfaces.EquitySnapshot, error) {
	snaps := f.snapshots
	if days > 0 && len(snaps) > days {
		snaps = snaps[len(snaps)-days:]
	}
	out := make([]*interfaces.EquitySnapshot, len(snaps))
	for i, s := range snaps {
		cp := *s
		out[i] = &cp
	}
	return out, nil
}

func (f *FixtureStore) LatestOptimizationRun(_ context.Context) (*interfaces.OptimizationRun, error) {
	if len(f.runs) == 0 {
		return nil, nil
	}
	return f.runs[0], nil
}

func (f *FixtureStore) ListOptimizationRuns(_ context.Context) ([]*interfaces.OptimizationRun, error) {
	return append([]*interfaces.OptimizationRun(nil), f.runs...), nil
}

func (f *FixtureStore) ListMarkets(_ context.Context) ([]*interfaces.Market, error) {
	return append([]*interfaces.Market(nil), f.markets...), nil
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
