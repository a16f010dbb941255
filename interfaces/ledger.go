package interfaces

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Source tags distinguish live-origin data from backtest-origin data
type Source string

const (
	SourceLive     Source = "live"
	SourceBacktest Source = "backtest"
)

// ParseSource validates a source tag against the closed set of known sources
func ParseSource(raw string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceLive:
		return SourceLive, nil
	case SourceBacktest:
		return SourceBacktest, nil
	}
	return "", fmt.Errorf("unknown source %q", raw)
}

// Direction of a round-trip position
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// DataSource defines the read side of the ledger
type DataSource interface {
	ListTrades(ctx context.Context, query TradeQuery) ([]*Trade, error)
	ListEquitySnapshots(ctx context.Context, source Source, days int) ([]*EquitySnapshot, error)
	LatestOptimizationRun(ctx context.Context) (*OptimizationRun, error)
	ListOptimizationRuns(ctx context.Context) ([]*OptimizationRun, error)
	ListMarkets(ctx context.Context) ([]*Market, error)
}

// LedgerStore is a DataSource that also accepts writes.
// Only persistent storage implements it.
type LedgerStore interface {
	DataSource
	UpsertTrade(ctx context.Context, trade *Trade) error
	ReplaceSnapshots(ctx context.Context, source Source, snapshots []*DailySnapshot) error
}

// TradeQuery filters and orders trade reads
type TradeQuery struct {
	Source       Source
	ExitedBefore time.Time // zero means no upper bound
	Limit        int       // zero means unlimited
	NewestFirst  bool      // default order is exit time ascending
}

// Trade is one completed round-trip position. Position size and dollar P&L
// are deliberately absent.
type Trade struct {
	ID         string    `json:"id"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnLPct     float64   `json:"pnl_pct"`
	ExitReason string    `json:"exit_reason"`
	Source     Source    `json:"source"`
}

// DailySnapshot is the derived account state for one (source, day)
type DailySnapshot struct {
	Date         time.Time
	OpenBalance  float64
	CloseBalance float64
	DailyPnL     float64
	DailyPnLPct  float64
	NumTrades    int
	Source       Source
}

// EquitySnapshot is the externally readable projection of a DailySnapshot
type EquitySnapshot struct {
	Date         time.Time
	CloseBalance float64
	DailyPnLPct  float64
}

// DistributionStats summarises one metric across an optimization sweep
type DistributionStats struct {
	Min   float64 `json:"min"`
	P10   float64 `json:"p10"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P90   float64 `json:"p90"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// OptimizationRun is a parameter-sweep record written by an external process.
// RawDistributions holds whatever keys storage returned and must be projected
// before it leaves the service.
type OptimizationRun struct {
	ID                string
	Name              string
	RunDate           time.Time
	Symbol            string
	Interval          string
	TotalCombinations int
	PassedConstraints int
	BestSharpe        float64
	BestROIPct        float64
	BestDrawdownPct   float64
	BacktestStart     string
	BacktestEnd       string
	NumCandles        int
	RawDistributions  map[string]DistributionStats
}

// Market describes a traded instrument
type Market struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	IsActive   bool   `json:"is_active"`
	ConfigHash string `json:"config_hash,omitempty"`
}
