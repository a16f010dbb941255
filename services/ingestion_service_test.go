package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"helios-ledger/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioPayload = `{
	"entry_time": "2026-02-11T00:00:00",
	"type": "LONG",
	"entry_price": 100,
	"exit_time": "2026-02-11T01:00:00",
	"exit_price": 105,
	"pnl_pct": 5,
	"exit_reason": "take_profit",
	"size": 0.25,
	"pnl": 1234.56
}`

func newIngestion(t *testing.T, store *recordingStore) *IngestionService {
	rebuilder := NewSnapshotRebuilder(store, NewLocalRebuildLocker(), 10000, time.Time{}, time.Second, quietLogger())
	return NewIngestionService(store, rebuilder, "s3cret", quietLogger())
}

func TestTradeID(t *testing.T) {
	id := TradeID("2026-02-11T00:00:00", interfaces.DirectionLong)
	assert.Regexp(t, `^trd_[0-9a-f]{12}$`, id)
	assert.Equal(t, id, TradeID("2026-02-11T00:00:00", interfaces.DirectionLong))
	assert.NotEqual(t, id, TradeID("2026-02-11T00:00:00", interfaces.DirectionShort))
	// The raw string is hashed, not the parsed instant.
	assert.NotEqual(t, id, TradeID("2026-02-11T00:00:00Z", interfaces.DirectionLong))
}

func TestAuthenticate(t *testing.T) {
	svc := NewIngestionService(nil, nil, "s3cret", quietLogger())
	assert.NoError(t, svc.Authenticate("s3cret"))
	assert.ErrorIs(t, svc.Authenticate(""), ErrUnauthorized)
	assert.ErrorIs(t, svc.Authenticate("s3cret "), ErrUnauthorized)
	assert.ErrorIs(t, svc.Authenticate("S3CRET"), ErrUnauthorized)

	unconfigured := NewIngestionService(nil, nil, "", quietLogger())
	assert.ErrorIs(t, unconfigured.Authenticate(""), ErrUnauthorized)
	assert.ErrorIs(t, unconfigured.Authenticate("anything"), ErrUnauthorized)
}

func TestParseTradeEvent(t *testing.T) {
	event, err := ParseTradeEvent([]byte(scenarioPayload))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-11T00:00:00", event.RawEntryTime)
	assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), event.EntryTime)
	assert.Equal(t, time.Date(2026, 2, 11, 1, 0, 0, 0, time.UTC), event.ExitTime)
	assert.Equal(t, interfaces.DirectionLong, event.Direction)
	assert.Equal(t, 5.0, event.PnLPct)

	offset, err := ParseTradeEvent([]byte(`{"entry_time":"2026-02-11T02:00:00.250+02:00","type":"short","entry_price":1,
		"exit_time":"2026-02-11 01:00:00","exit_price":1,"pnl_pct":0,"exit_reason":"manual"}`))
	require.NoError(t, err)
	assert.Equal(t, interfaces.DirectionShort, offset.Direction)
	assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 250_000_000, time.UTC), offset.EntryTime)
}

func TestParseTradeEvent_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		malformed bool
		field     string
	}{
		{name: "not json", body: `entry_time=now`, malformed: true},
		{name: "array", body: `[1,2]`, malformed: true},
		{name: "null body", body: `null`, malformed: true},
		{name: "missing entry_time", body: `{"type":"LONG"}`, field: "entry_time"},
		{name: "null type", body: `{"entry_time":"2026-02-11T00:00:00","type":null}`, field: "type"},
		{name: "unknown direction", body: `{"entry_time":"2026-02-11T00:00:00","type":"FLAT"}`, field: "type"},
		{name: "string price", body: `{"entry_time":"2026-02-11T00:00:00","type":"LONG","entry_price":"100"}`, field: "entry_price"},
		{name: "bad timestamp", body: `{"entry_time":"yesterday","type":"LONG"}`, field: "entry_time"},
		{
			name:  "exit before entry",
			body:  `{"entry_time":"2026-02-11T02:00:00","type":"LONG","entry_price":1,"exit_time":"2026-02-11T01:00:00"}`,
			field: "exit_time",
		},
		{
			name:  "missing exit_reason",
			body:  `{"entry_time":"2026-02-11T00:00:00","type":"LONG","entry_price":1,"exit_time":"2026-02-11T01:00:00","exit_price":1,"pnl_pct":1}`,
			field: "exit_reason",
		},
		{
			name:  "numeric exit_reason",
			body:  `{"entry_time":"2026-02-11T00:00:00","type":"LONG","entry_price":1,"exit_time":"2026-02-11T01:00:00","exit_price":1,"pnl_pct":1,"exit_reason":7}`,
			field: "exit_reason",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTradeEvent([]byte(tt.body))
			require.Error(t, err)
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedRequest)
				return
			}
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestIngest_EndToEndScenario(t *testing.T) {
	store := newRecordingStore(t)
	svc := newIngestion(t, store)
	ctx := context.Background()

	result, err := svc.Ingest(ctx, []byte(scenarioPayload))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, TradeID("2026-02-11T00:00:00", interfaces.DirectionLong), result.TradeID)
	assert.Equal(t, 10500.0, result.Balance)

	snaps := store.last(interfaces.SourceLive)
	require.Len(t, snaps, 1)
	assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC), snaps[0].Date)
	assert.Equal(t, 10000.0, snaps[0].OpenBalance)
	assert.Equal(t, 10500.0, snaps[0].CloseBalance)
	assert.Equal(t, 5.0, snaps[0].DailyPnLPct)
	assert.Equal(t, 500.0, snaps[0].DailyPnL)

	stored, err := store.ListEquitySnapshots(ctx, interfaces.SourceLive, 30)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 10500.0, stored[0].CloseBalance)
}

func TestIngest_Idempotent(t *testing.T) {
	store := newRecordingStore(t)
	svc := newIngestion(t, store)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, []byte(scenarioPayload))
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, []byte(scenarioPayload))
	require.NoError(t, err)

	assert.Equal(t, first.TradeID, second.TradeID)
	assert.Equal(t, first.Balance, second.Balance)

	trades, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceLive})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, interfaces.SourceLive, trades[0].Source)
}

func TestIngest_RoundsPnL(t *testing.T) {
	store := newRecordingStore(t)
	svc := newIngestion(t, store)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []byte(`{"entry_time":"2026-02-11T00:00:00","type":"LONG","entry_price":100,
		"exit_time":"2026-02-11T01:00:00","exit_price":101.23456,"pnl_pct":1.23456789,"exit_reason":"take_profit"}`))
	require.NoError(t, err)

	trades, err := store.ListTrades(ctx, interfaces.TradeQuery{Source: interfaces.SourceLive})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 1.2346, trades[0].PnLPct)
}

func TestIngest_NotConfigured(t *testing.T) {
	svc := NewIngestionService(nil, nil, "s3cret", quietLogger())
	_, err := svc.Ingest(context.Background(), []byte(scenarioPayload))
	assert.ErrorIs(t, err, ErrNotConfigured)

	// Validation still runs first.
	_, err = svc.Ingest(context.Background(), []byte(`{}`))
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestIngest_StorageFailure(t *testing.T) {
	store := newRecordingStore(t)
	svc := newIngestion(t, store)
	require.NoError(t, store.Close())

	_, err := svc.Ingest(context.Background(), []byte(scenarioPayload))
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "upsert_trade", storageErr.Op)
	assert.Zero(t, store.writes)
}
