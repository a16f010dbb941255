package services

import (
	"context"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/sirupsen/logrus"
)

// defaultMarket is reported when no market row is available
var defaultMarket = interfaces.Market{
	ID:       "mkt_btc_001",
	Symbol:   "BTC-USD",
	Interval: "15m",
	IsActive: true,
}

// PerformanceSummary is the aggregate served for one source
type PerformanceSummary struct {
	Market             *interfaces.Market `json:"market"`
	CurrentPosition    string             `json:"current_position"`
	SessionPnL         float64            `json:"session_pnl"`
	SessionPnLPct      float64            `json:"session_pnl_pct"`
	TotalTrades        int                `json:"total_trades"`
	WinRate            float64            `json:"win_rate"`
	MaxDrawdownPct     float64            `json:"max_drawdown_pct"`
	AvgWinPct          float64            `json:"avg_win_pct"`
	AvgLossPct         float64            `json:"avg_loss_pct"`
	BenchmarkReturnPct *float64           `json:"benchmark_return_pct,omitempty"`
	SharpeRatio        *float64           `json:"sharpe_ratio,omitempty"`
	BacktestStart      string             `json:"backtest_start,omitempty"`
	BacktestEnd        string             `json:"backtest_end,omitempty"`
	NumCandles         int                `json:"num_candles,omitempty"`
}

// TradeStats are the unrounded trade-level statistics
type TradeStats struct {
	TotalTrades    int
	WinRate        float64
	AvgWinPct      float64
	AvgLossPct     float64
	CumReturnPct   float64
	MaxDrawdownPct float64
	BenchmarkPct   float64
	HasBenchmark   bool
	SharpeRatio    float64
	HasSharpeRatio bool
}

// ComputeTradeStats aggregates trades ordered by exit time. A pnl_pct above
// zero is a win; anything else is a loss.
func ComputeTradeStats(trades []*interfaces.Trade) TradeStats {
	stats := TradeStats{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	var wins, losses, returns []float64
	cumReturn, peak := 1.0, 1.0
	for _, t := range trades {
		returns = append(returns, t.PnLPct)
		if t.PnLPct > 0 {
			wins = append(wins, t.PnLPct)
		} else {
			losses = append(losses, t.PnLPct)
		}

		cumReturn *= 1 + t.PnLPct/100
		if cumReturn > peak {
			peak = cumReturn
		}
		if dd := (peak - cumReturn) / peak * 100; dd > stats.MaxDrawdownPct {
			stats.MaxDrawdownPct = dd
		}
	}

	stats.WinRate = float64(len(wins)) / float64(len(trades)) * 100
	stats.AvgWinPct = numeric.Mean(wins)
	stats.AvgLossPct = numeric.Mean(losses)
	stats.CumReturnPct = (cumReturn - 1) * 100

	first, last := trades[0], trades[len(trades)-1]
	if first.EntryPrice != 0 && last.ExitPrice != 0 {
		stats.BenchmarkPct = (last.ExitPrice - first.EntryPrice) / first.EntryPrice * 100
		stats.HasBenchmark = true
	}

	if len(returns) >= 2 {
		mean := numeric.Mean(returns)
		if stddev := numeric.SampleStdDev(returns, mean); stddev > 0 {
			stats.SharpeRatio = mean / stddev
			stats.HasSharpeRatio = true
		}
	}

	return stats
}

// PerformanceService recomputes performance summaries on each request
type PerformanceService struct {
	source  interfaces.DataSource
	embargo Embargo
	logger  *logrus.Logger
}

// NewPerformanceService creates a performance summary service
func NewPerformanceService(source interfaces.DataSource, embargo Embargo, log *logrus.Logger) *PerformanceService {
	return &PerformanceService{
		source:  source,
		embargo: embargo,
		logger:  log,
	}
}

// GetPerformanceSummary aggregates the trades of source. Backtest headline
// metrics come from the newest optimization run when one exists.
func (s *PerformanceService) GetPerformanceSummary(ctx context.Context, source interfaces.Source) (*PerformanceSummary, error) {
	trades, err := s.source.ListTrades(ctx, interfaces.TradeQuery{
		Source:       source,
		ExitedBefore: s.embargo.Cutoff(source),
	})
	if err != nil {
		return nil, err
	}

	stats := ComputeTradeStats(trades)
	summary := &PerformanceSummary{
		Market:          s.market(ctx),
		CurrentPosition: "FLAT",
		SessionPnL:      0,
		SessionPnLPct:   numeric.Round(stats.CumReturnPct, 2),
		TotalTrades:     stats.TotalTrades,
		WinRate:         numeric.Round(stats.WinRate, 2),
		MaxDrawdownPct:  numeric.Round(stats.MaxDrawdownPct, 2),
		AvgWinPct:       numeric.Round(stats.AvgWinPct, 2),
		AvgLossPct:      numeric.Round(stats.AvgLossPct, 2),
	}
	if stats.HasBenchmark {
		benchmark := numeric.Round(stats.BenchmarkPct, 2)
		summary.BenchmarkReturnPct = &benchmark
	}
	if stats.HasSharpeRatio {
		sharpe := numeric.Round(stats.SharpeRatio, 4)
		summary.SharpeRatio = &sharpe
	}

	if source == interfaces.SourceBacktest {
		s.applyOptimizationHeadline(ctx, summary)
	}

	return summary, nil
}

func (s *PerformanceService) applyOptimizationHeadline(ctx context.Context, summary *PerformanceSummary) {
	run, err := s.source.LatestOptimizationRun(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Optimization run unavailable, using computed backtest metrics")
		return
	}
	if run == nil {
		return
	}

	sharpe := numeric.Round(run.BestSharpe, 4)
	summary.SharpeRatio = &sharpe
	summary.SessionPnLPct = numeric.Round(run.BestROIPct, 2)
	summary.MaxDrawdownPct = numeric.Round(run.BestDrawdownPct, 2)
	summary.BacktestStart = run.BacktestStart
	summary.BacktestEnd = run.BacktestEnd
	summary.NumCandles = run.NumCandles
}

func (s *PerformanceService) market(ctx context.Context) *interfaces.Market {
	markets, err := s.source.ListMarkets(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Markets unavailable")
	}

	var firstActive *interfaces.Market
	for _, m := range markets {
		if m.ID == defaultMarket.ID {
			return m
		}
		if firstActive == nil && m.IsActive {
			firstActive = m
		}
	}
	if firstActive != nil {
		return firstActive
	}

	m := defaultMarket
	return &m
}
