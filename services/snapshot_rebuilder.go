package services

import (
	"context"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/sirupsen/logrus"
)

// RebuildResult summarises one completed rebuild
type RebuildResult struct {
	Source       interfaces.Source `json:"source"`
	Snapshots    int               `json:"snapshots"`
	FinalBalance float64           `json:"final_balance"`
}

// SnapshotRebuilder re-derives the daily snapshot set of a source from its trades
type SnapshotRebuilder struct {
	store           interfaces.LedgerStore
	locker          RebuildLocker
	startingBalance float64
	sessionStart    time.Time
	lockTimeout     time.Duration
	logger          *logrus.Logger
}

// NewSnapshotRebuilder creates a rebuilder. A zero sessionStart starts every
// walk at the first trade's exit day.
func NewSnapshotRebuilder(
	store interfaces.LedgerStore,
	locker RebuildLocker,
	startingBalance float64,
	sessionStart time.Time,
	lockTimeout time.Duration,
	log *logrus.Logger,
) *SnapshotRebuilder {
	if locker == nil {
		locker = NewLocalRebuildLocker()
	}
	return &SnapshotRebuilder{
		store:           store,
		locker:          locker,
		startingBalance: startingBalance,
		sessionStart:    sessionStart,
		lockTimeout:     lockTimeout,
		logger:          log,
	}
}

// Rebuild replaces the snapshot set of source. Rebuilds of the same source
// never overlap; the lock wait is bounded by the configured timeout.
func (r *SnapshotRebuilder) Rebuild(ctx context.Context, source interfaces.Source) (*RebuildResult, error) {
	lockCtx := ctx
	if r.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}

	release, err := r.locker.Lock(lockCtx, source)
	if err != nil {
		return nil, &StorageError{Op: "rebuild_lock", Err: err}
	}
	defer release()

	trades, err := r.store.ListTrades(ctx, interfaces.TradeQuery{Source: source})
	if err != nil {
		return nil, &StorageError{Op: "read_trades", Err: err}
	}

	result := &RebuildResult{Source: source, FinalBalance: r.startingBalance}
	if len(trades) == 0 {
		r.logger.WithField("source", source).Info("No trades for source, skipping snapshot rebuild")
		return result, nil
	}

	snapshots := BuildDailySnapshots(trades, source, r.startingBalance, r.sessionStart)
	if err := r.store.ReplaceSnapshots(ctx, source, snapshots); err != nil {
		r.logger.WithError(err).WithField("source", source).Error("Snapshot rebuild failed, snapshots are stale")
		return nil, &StorageError{Op: "replace_snapshots", Err: err}
	}

	result.Snapshots = len(snapshots)
	result.FinalBalance = snapshots[len(snapshots)-1].CloseBalance

	r.logger.WithFields(logrus.Fields{
		"source":        source,
		"trades":        len(trades),
		"snapshots":     result.Snapshots,
		"final_balance": result.FinalBalance,
	}).Info("Snapshots rebuilt")

	return result, nil
}

// BuildDailySnapshots walks every UTC day from the session start through the
// latest exit day, chaining each day's opening balance to the previous close.
// trades must be ordered by exit time ascending.
func BuildDailySnapshots(trades []*interfaces.Trade, source interfaces.Source, startingBalance float64, sessionStart time.Time) []*interfaces.DailySnapshot {
	if len(trades) == 0 {
		return nil
	}

	pnlByDay := make(map[time.Time][]float64)
	first := utcDay(trades[0].ExitTime)
	last := first
	for _, t := range trades {
		day := utcDay(t.ExitTime)
		pnlByDay[day] = append(pnlByDay[day], t.PnLPct)
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	start := first
	if !sessionStart.IsZero() && utcDay(sessionStart).Before(first) {
		start = utcDay(sessionStart)
	}

	var snapshots []*interfaces.DailySnapshot
	balance := startingBalance
	for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
		dayPnL := 0.0
		for _, pct := range pnlByDay[day] {
			dayPnL += pct
		}

		open := balance
		balance = open * (1 + dayPnL/100)

		snapshots = append(snapshots, &interfaces.DailySnapshot{
			Date:         day,
			OpenBalance:  numeric.Round(open, 2),
			CloseBalance: numeric.Round(balance, 2),
			DailyPnL:     numeric.Round(balance-open, 2),
			DailyPnLPct:  numeric.Round(dayPnL, 4),
			NumTrades:    len(pnlByDay[day]),
			Source:       source,
		})
	}

	return snapshots
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
