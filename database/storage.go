package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const dateLayout = "2006-01-02"

// ErrUnsupportedDriver is returned for a driver name Open does not know
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// tradeColumns is the only column set ever read from the trades table
var tradeColumns = []string{
	"id", "entry_time", "exit_time", "direction",
	"entry_price", "exit_price", "pnl_pct", "exit_reason", "source",
}

// LedgerStorage implements the LedgerStore interface on top of gorm
type LedgerStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Compile-time interface check.
var _ interfaces.LedgerStore = (*LedgerStorage)(nil)

// NewLedgerStorage opens the configured database and migrates the ledger schema
func NewLedgerStorage(driver, dsn string, log *logrus.Logger) (*LedgerStorage, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DBTrade{},
		&models.DBDailySnapshot{},
		&models.DBOptimizationRun{},
		&models.DBMarket{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.WithField("driver", driver).Info("Ledger database ready")

	return &LedgerStorage{
		db:     db,
		logger: log,
	}, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	case "postgres", "postgresql":
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		return postgres.New(postgres.Config{Conn: sqlDB}), nil
	case "mysql":
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
}

// UpsertTrade inserts a trade or fully replaces the row with the same id
func (s *LedgerStorage) UpsertTrade(ctx context.Context, trade *interfaces.Trade) error {
	row := &models.DBTrade{
		ID:         trade.ID,
		EntryTime:  trade.EntryTime.UTC(),
		ExitTime:   trade.ExitTime.UTC(),
		Direction:  string(trade.Direction),
		EntryPrice: trade.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		PnLPct:     trade.PnLPct,
		ExitReason: trade.ExitReason,
		Source:     string(trade.Source),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entry_time", "exit_time", "direction", "entry_price",
			"exit_price", "pnl_pct", "exit_reason", "source", "updated_at",
		}),
	}).Create(row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert trade: %w", result.Error)
	}

	return nil
}

// ListTrades retrieves trades for a source through the explicit column allowlist
func (s *LedgerStorage) ListTrades(ctx context.Context, q interfaces.TradeQuery) ([]*interfaces.Trade, error) {
	var rows []*models.DBTrade

	query := s.db.WithContext(ctx).Model(&models.DBTrade{}).
		Select(tradeColumns).
		Where("source = ?", string(q.Source))
	if !q.ExitedBefore.IsZero() {
		query = query.Where("exit_time < ?", q.ExitedBefore.UTC())
	}
	if q.NewestFirst {
		query = query.Order("exit_time DESC").Order("id DESC")
	} else {
		query = query.Order("exit_time ASC").Order("id ASC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}

	trades := make([]*interfaces.Trade, len(rows))
	for i, row := range rows {
		trades[i] = &interfaces.Trade{
			ID:         row.ID,
			EntryTime:  row.EntryTime.UTC(),
			ExitTime:   row.ExitTime.UTC(),
			Direction:  interfaces.Direction(row.Direction),
			EntryPrice: row.EntryPrice,
			ExitPrice:  row.ExitPrice,
			PnLPct:     row.PnLPct,
			ExitReason: row.ExitReason,
			Source:     interfaces.Source(row.Source),
		}
	}

	return trades, nil
}

// ListEquitySnapshots returns the most recent days of snapshots, oldest first.
// Only date, closing balance and daily percentage are selected.
func (s *LedgerStorage) ListEquitySnapshots(ctx context.Context, source interfaces.Source, days int) ([]*interfaces.EquitySnapshot, error) {
	var rows []*models.DBDailySnapshot

	query := s.db.WithContext(ctx).Model(&models.DBDailySnapshot{}).
		Select("date", "close_balance", "daily_pnl_pct").
		Where("source = ?", string(source)).
		Order("date DESC")
	if days > 0 {
		query = query.Limit(days)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	snapshots := make([]*interfaces.EquitySnapshot, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		date, err := time.Parse(dateLayout, rows[i].Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot date %q: %w", rows[i].Date, err)
		}
		snapshots = append(snapshots, &interfaces.EquitySnapshot{
			Date:         date,
			CloseBalance: rows[i].CloseBalance,
			DailyPnLPct:  rows[i].DailyPnLPct,
		})
	}

	return snapshots, nil
}

// ReplaceSnapshots swaps the whole snapshot set of a source in one transaction
func (s *LedgerStorage) ReplaceSnapshots(ctx context.Context, source interfaces.Source, snapshots []*interfaces.DailySnapshot) error {
	rows := make([]*models.DBDailySnapshot, len(snapshots))
	for i, snap := range snapshots {
		rows[i] = &models.DBDailySnapshot{
			Source:       string(source),
			Date:         snap.Date.UTC().Format(dateLayout),
			OpenBalance:  snap.OpenBalance,
			CloseBalance: snap.CloseBalance,
			DailyPnL:     snap.DailyPnL,
			DailyPnLPct:  snap.DailyPnLPct,
			NumTrades:    snap.NumTrades,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source = ?", string(source)).Delete(&models.DBDailySnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to delete snapshots: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"source": source,
		"count":  len(rows),
	}).Debug("Snapshots replaced")
	return nil
}

// LatestOptimizationRun returns the newest run, or nil when none is stored
func (s *LedgerStorage) LatestOptimizationRun(ctx context.Context) (*interfaces.OptimizationRun, error) {
	var rows []*models.DBOptimizationRun

	result := s.db.WithContext(ctx).Order("run_date DESC").Limit(1).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get optimization run: %w", result.Error)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return s.toOptimizationRun(rows[0]), nil
}

// ListOptimizationRuns retrieves all runs, newest first
func (s *LedgerStorage) ListOptimizationRuns(ctx context.Context) ([]*interfaces.OptimizationRun, error) {
	var rows []*models.DBOptimizationRun

	if err := s.db.WithContext(ctx).Order("run_date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get optimization runs: %w", err)
	}

	runs := make([]*interfaces.OptimizationRun, len(rows))
	for i, row := range rows {
		runs[i] = s.toOptimizationRun(row)
	}
	return runs, nil
}

// UpsertOptimizationRun stores a run, replacing any row with the same id
func (s *LedgerStorage) UpsertOptimizationRun(ctx context.Context, run *interfaces.OptimizationRun) error {
	var distributions datatypes.JSON
	if len(run.RawDistributions) > 0 {
		raw, err := json.Marshal(run.RawDistributions)
		if err != nil {
			return fmt.Errorf("failed to encode distributions: %w", err)
		}
		distributions = datatypes.JSON(raw)
	}

	row := &models.DBOptimizationRun{
		ID:                run.ID,
		Name:              run.Name,
		RunDate:           run.RunDate.UTC(),
		Symbol:            run.Symbol,
		Interval:          run.Interval,
		TotalCombinations: run.TotalCombinations,
		PassedConstraints: run.PassedConstraints,
		BestSharpe:        run.BestSharpe,
		BestROIPct:        run.BestROIPct,
		BestDrawdownPct:   run.BestDrawdownPct,
		BacktestStart:     run.BacktestStart,
		BacktestEnd:       run.BacktestEnd,
		NumCandles:        run.NumCandles,
		Distributions:     distributions,
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save optimization run: %w", err)
	}
	return nil
}

// ListMarkets retrieves every known market
func (s *LedgerStorage) ListMarkets(ctx context.Context) ([]*interfaces.Market, error) {
	var rows []*models.DBMarket

	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}

	markets := make([]*interfaces.Market, len(rows))
	for i, row := range rows {
		markets[i] = &interfaces.Market{
			ID:         row.ID,
			Symbol:     row.Symbol,
			Interval:   row.Interval,
			IsActive:   row.IsActive,
			ConfigHash: row.ConfigHash,
		}
	}
	return markets, nil
}

// UpsertMarket stores a market, replacing any row with the same id
func (s *LedgerStorage) UpsertMarket(ctx context.Context, market *interfaces.Market) error {
	row := &models.DBMarket{
		ID:         market.ID,
		Symbol:     market.Symbol,
		Interval:   market.Interval,
		IsActive:   market.IsActive,
		ConfigHash: market.ConfigHash,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save market: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *LedgerStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *LedgerStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *LedgerStorage) toOptimizationRun(row *models.DBOptimizationRun) *interfaces.OptimizationRun {
	run := &interfaces.OptimizationRun{
		ID:                row.ID,
		Name:              row.Name,
		RunDate:           row.RunDate.UTC(),
		Symbol:            row.Symbol,
		Interval:          row.Interval,
		TotalCombinations: row.TotalCombinations,
		PassedConstraints: row.PassedConstraints,
		BestSharpe:        row.BestSharpe,
		BestROIPct:        row.BestROIPct,
		BestDrawdownPct:   row.BestDrawdownPct,
		BacktestStart:     row.BacktestStart,
		BacktestEnd:       row.BacktestEnd,
		NumCandles:        row.NumCandles,
	}

	if len(row.Distributions) == 0 {
		return run
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(row.Distributions, &raw); err != nil {
		s.logger.WithError(err).WithField("run_id", row.ID).Warn("Ignoring unreadable distributions")
		return run
	}

	run.RawDistributions = make(map[string]interfaces.DistributionStats, len(raw))
	for key, value := range raw {
		var stats interfaces.DistributionStats
		if err := json.Unmarshal(value, &stats); err != nil {
			continue
		}
		run.RawDistributions[key] = stats
	}
	return run
}
