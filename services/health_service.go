package services

import (
	"context"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/sirupsen/logrus"
)

// Pinger is implemented by data sources backed by a live connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport describes the service and its data source
type HealthReport struct {
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	LastCheck     time.Time  `json:"last_check"`
	LastTrade     *time.Time `json:"last_trade,omitempty"`
	MarketsActive int        `json:"markets_active"`
	UptimeHours   float64    `json:"uptime_hours"`
}

// HealthService reports whether reads are served from the database
type HealthService struct {
	source  interfaces.DataSource
	pinger  Pinger
	embargo Embargo
	started time.Time
	logger  *logrus.Logger
}

// NewHealthService creates a health reporter. A nil pinger means the service
// runs on demonstration data only.
func NewHealthService(source interfaces.DataSource, pinger Pinger, embargo Embargo, log *logrus.Logger) *HealthService {
	return &HealthService{
		source:  source,
		pinger:  pinger,
		embargo: embargo,
		started: embargo.now(),
		logger:  log,
	}
}

func (s *HealthService) Check(ctx context.Context) *HealthReport {
	now := s.embargo.now()
	report := &HealthReport{
		Status:      "demo",
		Mode:        "static",
		LastCheck:   now,
		UptimeHours: numeric.Round(now.Sub(s.started).Hours(), 2),
	}

	if s.pinger != nil {
		report.Mode = "database"
		report.Status = "healthy"
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Database ping failed")
			report.Status = "degraded"
		}
	}

	trades, err := s.source.ListTrades(ctx, interfaces.TradeQuery{
		Source:       interfaces.SourceLive,
		ExitedBefore: s.embargo.Cutoff(interfaces.SourceLive),
		Limit:        1,
		NewestFirst:  true,
	})
	if err == nil && len(trades) > 0 {
		last := trades[0].ExitTime.UTC()
		report.LastTrade = &last
	}

	markets, err := s.source.ListMarkets(ctx)
	if err == nil {
		for _, m := range markets {
			if m.IsActive {
				report.MarketsActive++
			}
		}
	}

	return report
}
