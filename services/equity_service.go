package services

import (
	"context"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/sirupsen/logrus"
)

const DefaultEquityDays = 30

// EquityPoint is one day of the equity curve
type EquityPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Balance          float64   `json:"balance"`
	DrawdownPct      float64   `json:"drawdown_pct"`
	DailyPnLPct      *float64  `json:"daily_pnl_pct,omitempty"`
	BenchmarkBalance *float64  `json:"benchmark_balance,omitempty"`
}

// EquityService builds equity curves with a buy-and-hold overlay
type EquityService struct {
	source  interfaces.DataSource
	embargo Embargo
	logger  *logrus.Logger
}

// NewEquityService creates an equity curve service
func NewEquityService(source interfaces.DataSource, embargo Embargo, log *logrus.Logger) *EquityService {
	return &EquityService{
		source:  source,
		embargo: embargo,
		logger:  log,
	}
}

// GetEquityCurve returns the most recent days of snapshots for source,
// oldest first, with drawdown and benchmark recomputed per request.
func (s *EquityService) GetEquityCurve(ctx context.Context, days int, source interfaces.Source) ([]*EquityPoint, error) {
	if days <= 0 {
		days = DefaultEquityDays
	}

	snapshots, err := s.source.ListEquitySnapshots(ctx, source, days)
	if err != nil {
		return nil, err
	}

	points := BuildEquityPoints(snapshots)
	if len(points) == 0 {
		return points, nil
	}

	trades, err := s.source.ListTrades(ctx, interfaces.TradeQuery{
		Source:       source,
		ExitedBefore: s.embargo.Cutoff(source),
	})
	if err != nil {
		s.logger.WithError(err).WithField("source", source).Warn("Benchmark unavailable")
		return points, nil
	}
	if len(trades) >= 2 {
		ApplyBenchmark(points, PriceSeriesFromTrades(trades))
	}

	return points, nil
}

// BuildEquityPoints projects snapshots onto curve points and computes the
// drawdown from a running peak seeded at zero.
func BuildEquityPoints(snapshots []*interfaces.EquitySnapshot) []*EquityPoint {
	points := make([]*EquityPoint, 0, len(snapshots))
	peak := 0.0
	for _, snap := range snapshots {
		if snap.CloseBalance > peak {
			peak = snap.CloseBalance
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = numeric.Round((peak-snap.CloseBalance)/peak*100, 2)
		}

		pct := snap.DailyPnLPct
		points = append(points, &EquityPoint{
			Timestamp:   snap.Date.UTC(),
			Balance:     snap.CloseBalance,
			DrawdownPct: drawdown,
			DailyPnLPct: &pct,
		})
	}
	return points
}

// ApplyBenchmark sets each point's buy-and-hold balance, scaled so the first
// point's benchmark equals its own balance.
func ApplyBenchmark(points []*EquityPoint, prices PriceSeries) {
	if len(points) == 0 || len(prices) == 0 {
		return
	}
	basePrice := prices.PriceAt(points[0].Timestamp)
	if basePrice == 0 {
		return
	}
	baseBalance := points[0].Balance
	for _, p := range points {
		benchmark := numeric.Round(baseBalance*prices.PriceAt(p.Timestamp)/basePrice, 2)
		p.BenchmarkBalance = &benchmark
	}
}
