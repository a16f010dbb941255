package services

import (
	"context"
	"time"

	"helios-ledger/interfaces"
)

const (
	DefaultTradeLimit = 20
	MaxTradeLimit     = 500
)

// Embargo hides live trades that closed too recently
type Embargo struct {
	Window time.Duration
	Now    func() time.Time
}

// NewEmbargo creates an embargo of window measured against the wall clock
func NewEmbargo(window time.Duration) Embargo {
	return Embargo{Window: window, Now: time.Now}
}

// Cutoff returns the exclusive upper bound on exit time for source.
// Only live data is embargoed; the zero time means no bound.
func (e Embargo) Cutoff(source interfaces.Source) time.Time {
	if source != interfaces.SourceLive || e.Window <= 0 {
		return time.Time{}
	}
	return e.now().Add(-e.Window)
}

func (e Embargo) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// LedgerQueryService serves the trade list
type LedgerQueryService struct {
	source  interfaces.DataSource
	embargo Embargo
}

// NewLedgerQueryService creates a read-only trade list service
func NewLedgerQueryService(source interfaces.DataSource, embargo Embargo) *LedgerQueryService {
	return &LedgerQueryService{
		source:  source,
		embargo: embargo,
	}
}

// ListTrades returns the newest trades of source, embargoed for live data
func (s *LedgerQueryService) ListTrades(ctx context.Context, source interfaces.Source, limit int) ([]*interfaces.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	if limit > MaxTradeLimit {
		limit = MaxTradeLimit
	}

	trades, err := s.source.ListTrades(ctx, interfaces.TradeQuery{
		Source:       source,
		ExitedBefore: s.embargo.Cutoff(source),
		Limit:        limit,
		NewestFirst:  true,
	})
	if err != nil {
		return nil, err
	}
	if trades == nil {
		trades = []*interfaces.Trade{}
	}
	return trades, nil
}
