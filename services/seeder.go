package services

import (
	"context"

	"helios-ledger/interfaces"

	"github.com/sirupsen/logrus"
)

// SeedStore is a ledger that also accepts the externally authored records
type SeedStore interface {
	interfaces.LedgerStore
	UpsertMarket(ctx context.Context, market *interfaces.Market) error
	UpsertOptimizationRun(ctx context.Context, run *interfaces.OptimizationRun) error
}

// Seeder copies demonstration data into persistent storage
type Seeder struct {
	store     SeedStore
	fixtures  interfaces.DataSource
	rebuilder *SnapshotRebuilder
	logger    *logrus.Logger
}

func NewSeeder(store SeedStore, fixtures interfaces.DataSource, rebuilder *SnapshotRebuilder, log *logrus.Logger) *Seeder {
	return &Seeder{
		store:     store,
		fixtures:  fixtures,
		rebuilder: rebuilder,
		logger:    log,
	}
}

// Seed upserts markets, optimization runs and backtest trades, then rebuilds
// the backtest snapshots. Running it twice leaves the same rows behind.
func (s *Seeder) Seed(ctx context.Context) error {
	markets, err := s.fixtures.ListMarkets(ctx)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if err := s.store.UpsertMarket(ctx, m); err != nil {
			return &StorageError{Op: "seed_market", Err: err}
		}
	}

	runs, err := s.fixtures.ListOptimizationRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if err := s.store.UpsertOptimizationRun(ctx, r); err != nil {
			return &StorageError{Op: "seed_optimization_run", Err: err}
		}
	}

	trades, err := s.fixtures.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceBacktest})
	if err != nil {
		return err
	}
	for _, t := range trades {
		if err := s.store.UpsertTrade(ctx, t); err != nil {
			return &StorageError{Op: "seed_trade", Err: err}
		}
	}

	result, err := s.rebuilder.Rebuild(ctx, interfaces.SourceBacktest)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"markets":           len(markets),
		"optimization_runs": len(runs),
		"trades":            len(trades),
		"snapshots":         result.Snapshots,
	}).Info("Demonstration data seeded")
	return nil
}
