package services

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"helios-ledger/database"
	"helios-ledger/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestStore(t *testing.T) *database.LedgerStorage {
	t.Helper()

	store, err := database.NewLedgerStorage("sqlite", filepath.Join(t.TempDir(), "ledger.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// recordingStore keeps the last snapshot set written per source
type recordingStore struct {
	*database.LedgerStorage

	mu       sync.Mutex
	replaced map[interfaces.Source][]*interfaces.DailySnapshot
	writes   int
}

func newRecordingStore(t *testing.T) *recordingStore {
	return &recordingStore{
		LedgerStorage: newTestStore(t),
		replaced:      make(map[interfaces.Source][]*interfaces.DailySnapshot),
	}
}

func (r *recordingStore) ReplaceSnapshots(ctx context.Context, source interfaces.Source, snapshots []*interfaces.DailySnapshot) error {
	if err := r.LedgerStorage.ReplaceSnapshots(ctx, source, snapshots); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced[source] = snapshots
	r.writes++
	return nil
}

func (r *recordingStore) last(source interfaces.Source) []*interfaces.DailySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaced[source]
}

func trade(id string, exit time.Time, pnl float64, source interfaces.Source) *interfaces.Trade {
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

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
