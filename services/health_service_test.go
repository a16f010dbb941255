package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"helios-ledger/database"
	"helios-ledger/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthService_Static(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	fixtures, err := database.NewFixtureStore(now)
	require.NoError(t, err)

	svc := NewHealthService(fixtures, nil, Embargo{Window: time.Hour, Now: fixedClock(now)}, quietLogger())
	report := svc.Check(context.Background())

	assert.Equal(t, "demo", report.Status)
	assert.Equal(t, "static", report.Mode)
	assert.Equal(t, now, report.LastCheck)
	assert.Equal(t, 2, report.MarketsActive)
	require.NotNil(t, report.LastTrade)
	assert.WithinDuration(t, now.Add(-288*time.Minute), *report.LastTrade, time.Millisecond)
}

func TestHealthService_Database(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.UpsertMarket(ctx, &interfaces.Market{ID: "mkt_btc_001", Symbol: "BTC-USD", IsActive: true}))
	require.NoError(t, store.UpsertMarket(ctx, &interfaces.Market{ID: "mkt_old", Symbol: "DOGE-USD", IsActive: false}))

	healthy := NewHealthService(store, store, NewEmbargo(time.Hour), quietLogger()).Check(ctx)
	assert.Equal(t, "healthy", healthy.Status)
	assert.Equal(t, "database", healthy.Mode)
	assert.Equal(t, 1, healthy.MarketsActive)
	assert.Nil(t, healthy.LastTrade)
	assert.WithinDuration(t, now, healthy.LastCheck, time.Minute)

	failing := pingFunc(func(context.Context) error { return errors.New("timeout") })
	degraded := NewHealthService(store, failing, NewEmbargo(time.Hour), quietLogger()).Check(ctx)
	assert.Equal(t, "degraded", degraded.Status)
	assert.Equal(t, "database", degraded.Mode)
}
