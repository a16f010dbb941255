package models

import (
	"time"

	"gorm.io/datatypes"
)

// DBTrade represents a completed trade in the ledger.
// There is intentionally no size or dollar P&L column.
type DBTrade struct {
	ID         string    `gorm:"primaryKey;size:32"`
	EntryTime  time.Time `gorm:"not null"`
	ExitTime   time.Time `gorm:"not null;index:idx_trades_source_exit"`
	Direction  string    `gorm:"size:8;not null"`
	EntryPrice float64   `gorm:"not null"`
	ExitPrice  float64   `gorm:"not null"`
	PnLPct     float64   `gorm:"column:pnl_pct;not null"`
	ExitReason string    `gorm:"size:64"`
	Source     string    `gorm:"size:16;not null;index:idx_trades_source_exit"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DBDailySnapshot represents one derived balance row per (source, day)
type DBDailySnapshot struct {
	ID           uint    `gorm:"primaryKey"`
	Source       string  `gorm:"size:16;not null;uniqueIndex:idx_snapshots_source_date"`
	Date         string  `gorm:"size:10;not null;uniqueIndex:idx_snapshots_source_date"` // YYYY-MM-DD, UTC
	OpenBalance  float64 `gorm:"not null"`
	CloseBalance float64 `gorm:"not null"`
	DailyPnL     float64 `gorm:"column:daily_pnl;not null"`
	DailyPnLPct  float64 `gorm:"column:daily_pnl_pct;not null"`
	NumTrades    int     `gorm:"not null"`
	CreatedAt    time.Time
}

// DBOptimizationRun represents a parameter sweep imported by an external process
type DBOptimizationRun struct {
	ID                string    `gorm:"primaryKey;size:32"`
	Name              string    `gorm:"size:128"`
	RunDate           time.Time `gorm:"index"`
	Symbol            string    `gorm:"size:64"`
	Interval          string    `gorm:"size:16"`
	TotalCombinations int
	PassedConstraints int
	BestSharpe        float64
	BestROIPct        float64 `gorm:"column:best_roi_pct"`
	BestDrawdownPct   float64
	BacktestStart     string `gorm:"size:32"`
	BacktestEnd       string `gorm:"size:32"`
	NumCandles        int
	Distributions     datatypes.JSON
}

// DBMarket represents a traded instrument
type DBMarket struct {
	ID         string `gorm:"primaryKey;size:32"`
	Symbol     string `gorm:"size:32;not null"`
	Interval   string `gorm:"size:16"`
	IsActive   bool
	ConfigHash string `gorm:"size:32"`
}

// TableName overrides for cleaner table names
func (DBTrade) TableName() string {
	return "trades"
}

func (DBDailySnapshot) TableName() string {
	return "daily_snapshots"
}

func (DBOptimizationRun) TableName() string {
	return "optimization_runs"
}

func (DBMarket) TableName() string {
	return "markets"
}
