package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"helios-ledger/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestStorage(t *testing.T) *LedgerStorage {
	t.Helper()

	store, err := NewLedgerStorage("sqlite", filepath.Join(t.TempDir(), "data", "ledger.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testTrade(id string, exit time.Time, pnl float64, source interfaces.Source) *interfaces.Trade {
	return &interfaces.Trade{
		ID:         id,
		EntryTime:  exit.Add(-time.Hour),
		ExitTime:   exit,
		Direction:  interfaces.DirectionLong,
		EntryPrice: 100,
		ExitPrice:  100 * (1 + pnl/100),
		PnLPct:     pnl,
		ExitReason: "take_profit",
		Source:     source,
	}
}

func TestNewLedgerStorage_UnsupportedDriver(t *testing.T) {
	_, err := NewLedgerStorage("oracle", "whatever", quietLogger())
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestUpsertTrade_ReplacesSameID(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	exit := time.Date(2026, 2, 11, 1, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertTrade(ctx, testTrade("trd_a", exit, 5, interfaces.SourceLive)))

	replacement := testTrade("trd_a", exit, 4.5, interfaces.SourceLive)
	replacement.ExitReason = "manual"
	require.NoError(t, store.UpsertTrade(ctx, replacement))

	trades, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceLive})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 4.5, trades[0].PnLPct)
	assert.Equal(t, "manual", trades[0].ExitReason)
	assert.True(t, exit.Equal(trades[0].ExitTime))
}

func TestListTrades_FilterOrderLimit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertTrade(ctx, testTrade("trd_2", base.Add(2*time.Hour), 1, interfaces.SourceLive)))
	require.NoError(t, store.UpsertTrade(ctx, testTrade("trd_1", base.Add(time.Hour), 1, interfaces.SourceLive)))
	require.NoError(t, store.UpsertTrade(ctx, testTrade("trd_3", base.Add(3*time.Hour), 1, interfaces.SourceLive)))
	require.NoError(t, store.UpsertTrade(ctx, testTrade("trd_bt", base, 1, interfaces.SourceBacktest)))

	asc, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceLive})
	require.NoError(t, err)
	assert.Equal(t, []string{"trd_1", "trd_2", "trd_3"}, tradeIDs(asc))

	desc, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceLive, NewestFirst: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"trd_3", "trd_2"}, tradeIDs(desc))

	bounded, err := store.ListTrades(ctx, interfaces.TradeQuery{
		Source:       interfaces.SourceLive,
		ExitedBefore: base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"trd_1"}, tradeIDs(bounded))

	backtest, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceBacktest})
	require.NoError(t, err)
	require.Len(t, backtest, 1)
	assert.Equal(t, interfaces.SourceBacktest, backtest[0].Source)
}

func TestReplaceSnapshots(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	first := make([]*interfaces.DailySnapshot, 5)
	for i := range first {
		first[i] = &interfaces.DailySnapshot{
			Date:         day.AddDate(0, 0, i),
			OpenBalance:  10000,
			CloseBalance: 10000 + float64(i),
			DailyPnLPct:  float64(i) / 100,
			Source:       interfaces.SourceLive,
		}
	}
	require.NoError(t, store.ReplaceSnapshots(ctx, interfaces.SourceLive, first))
	require.NoError(t, store.ReplaceSnapshots(ctx, interfaces.SourceBacktest, first[:1]))

	// Replace with a shorter set; nothing from the first set may survive.
	second := []*interfaces.DailySnapshot{{
		Date:         day.AddDate(0, 0, 10),
		OpenBalance:  9000,
		CloseBalance: 9100,
		DailyPnLPct:  1.1111,
		Source:       interfaces.SourceLive,
	}}
	require.NoError(t, store.ReplaceSnapshots(ctx, interfaces.SourceLive, second))

	live, err := store.ListEquitySnapshots(ctx, interfaces.SourceLive, 30)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, day.AddDate(0, 0, 10), live[0].Date)
	assert.Equal(t, 9100.0, live[0].CloseBalance)

	backtest, err := store.ListEquitySnapshots(ctx, interfaces.SourceBacktest, 30)
	require.NoError(t, err)
	assert.Len(t, backtest, 1)
}

func TestListEquitySnapshots_MostRecentAscending(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var snaps []*interfaces.DailySnapshot
	for i := 0; i < 10; i++ {
		snaps = append(snaps, &interfaces.DailySnapshot{
			Date:         day.AddDate(0, 0, i),
			CloseBalance: 10000 + float64(i),
			Source:       interfaces.SourceLive,
		})
	}
	require.NoError(t, store.ReplaceSnapshots(ctx, interfaces.SourceLive, snaps))

	got, err := store.ListEquitySnapshots(ctx, interfaces.SourceLive, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day.AddDate(0, 0, 7), got[0].Date)
	assert.Equal(t, day.AddDate(0, 0, 9), got[2].Date)
	assert.Equal(t, 10009.0, got[2].CloseBalance)
}

func TestOptimizationRuns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	latest, err := store.LatestOptimizationRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older := &interfaces.OptimizationRun{
		ID:      "opt_old",
		Name:    "old",
		RunDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &interfaces.OptimizationRun{
		ID:         "opt_new",
		Name:       "new",
		RunDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		BestSharpe: 2.1,
		RawDistributions: map[string]interfaces.DistributionStats{
			"sharpe_ratio":     {Min: 0.1, P50: 1.2, Max: 2.1, Count: 10},
			"internal_param_x": {Mean: 42},
		},
	}
	require.NoError(t, store.UpsertOptimizationRun(ctx, older))
	require.NoError(t, store.UpsertOptimizationRun(ctx, newer))

	latest, err = store.LatestOptimizationRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "opt_new", latest.ID)
	assert.Equal(t, 1.2, latest.RawDistributions["sharpe_ratio"].P50)
	assert.Contains(t, latest.RawDistributions, "internal_param_x")

	runs, err := store.ListOptimizationRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "opt_new", runs[0].ID)
	assert.Nil(t, runs[1].RawDistributions)
}

func TestMarkets(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMarket(ctx, &interfaces.Market{ID: "mkt_btc_001", Symbol: "BTC-USD", Interval: "15m", IsActive: true}))
	require.NoError(t, store.UpsertMarket(ctx, &interfaces.Market{ID: "mkt_btc_001", Symbol: "BTC-USD", Interval: "1h", IsActive: false}))

	markets, err := store.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "1h", markets[0].Interval)
	assert.False(t, markets[0].IsActive)

	assert.NoError(t, store.Ping(ctx))
}

func tradeIDs(trades []*interfaces.Trade) []string {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
	}
	return ids
}
