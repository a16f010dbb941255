package database

import (
	"context"

	"helios-ledger/interfaces"

	"github.com/sirupsen/logrus"
)

// FallbackSource reads from a primary DataSource and serves the fixture
// data whenever the primary fails or comes back empty.
type FallbackSource struct {
	primary interfaces.DataSource
	fixture interfaces.DataSource
	logger  *logrus.Logger
}

var _ interfaces.DataSource = (*FallbackSource)(nil)

// NewFallbackSource wraps primary with fixture as the degraded read path
func NewFallbackSource(primary, fixture interfaces.DataSource, log *logrus.Logger) *FallbackSource {
	return &FallbackSource{
		primary: primary,
		fixture: fixture,
		logger:  log,
	}
}

func (f *FallbackSource) degrade(op string, err error) {
	entry := f.logger.WithField("op", op)
	if err != nil {
		entry.WithError(err).Warn("Primary read failed, serving demonstration data")
		return
	}
	entry.Debug("Primary read empty, serving demonstration data")
}

func (f *FallbackSource) ListTrades(ctx context.Context, q interfaces.TradeQuery) ([]*interfaces.Trade, error) {
	trades, err := f.primary.ListTrades(ctx, q)
	if err == nil && len(trades) > 0 {
		return trades, nil
	}
	f.degrade("list_trades", err)
	return f.fixture.ListTrades(ctx, q)
}

func (f *FallbackSource) ListEquitySnapshots(ctx context.Context, source interfaces.Source, days int) ([]*interfaces.EquitySnapshot, error) {
	snaps, err := f.primary.ListEquitySnapshots(ctx, source, days)
	if err == nil && len(snaps) > 0 {
		return snaps, nil
	}
	f.degrade("list_equity_snapshots", err)
	return f.fixture.ListEquitySnapshots(ctx, source, days)
}

// LatestOptimizationRun only degrades on error. An empty table is a valid
// answer and makes callers use their computed metrics.
func (f *FallbackSource) LatestOptimizationRun(ctx context.Context) (*interfaces.OptimizationRun, error) {
	run, err := f.primary.LatestOptimizationRun(ctx)
	if err == nil {
		return run, nil
	}
	f.degrade("latest_optimization_run", err)
	return f.fixture.LatestOptimizationRun(ctx)
}

func (f *FallbackSource) ListOptimizationRuns(ctx context.Context) ([]*interfaces.OptimizationRun, error) {
	runs, err := f.primary.ListOptimizationRuns(ctx)
	if err == nil && len(runs) > 0 {
		return runs, nil
	}
	f.degrade("list_optimization_runs", err)
	return f.fixture.ListOptimizationRuns(ctx)
}

func (f *FallbackSource) ListMarkets(ctx context.Context) ([]*interfaces.Market, error) {
	markets, err := f.primary.ListMarkets(ctx)
	if err == nil && len(markets) > 0 {
		return markets, nil
	}
	f.degrade("list_markets", err)
	return f.fixture.ListMarkets(ctx)
}

// Ping reports the health of the primary when it supports pinging
func (f *FallbackSource) Ping(ctx context.Context) error {
	if p, ok := f.primary.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
