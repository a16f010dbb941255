package controllers

import (
	"strconv"

	"helios-ledger/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxEquityDays = 3650

// AnalyticsController serves equity curves, performance and optimization runs
type AnalyticsController struct {
	equity       *services.EquityService
	performance  *services.PerformanceService
	optimization *services.OptimizationService
	logger       *logrus.Logger
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(
	equity *services.EquityService,
	performance *services.PerformanceService,
	optimization *services.OptimizationService,
	log *logrus.Logger,
) *AnalyticsController {
	return &AnalyticsController{
		equity:       equity,
		performance:  performance,
		optimization: optimization,
		logger:       log,
	}
}

// HandleGetEquity handles GET /api/v1/equity
func (ac *AnalyticsController) HandleGetEquity(c *gin.Context) {
	source, ok := sourceParam(c)
	if !ok {
		return
	}

	days := services.DefaultEquityDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(400, gin.H{"error": "days must be a positive integer"})
			return
		}
		if n > maxEquityDays {
			n = maxEquityDays
		}
		days = n
	}

	points, err := ac.equity.GetEquityCurve(c.Request.Context(), days, source)
	if err != nil {
		ac.logger.WithError(err).WithField("source", source).Error("Failed to build equity curve")
		c.JSON(500, gin.H{"error": "failed to build equity curve"})
		return
	}

	c.JSON(200, points)
}

// HandleGetPerformance handles GET /api/v1/performance
func (ac *AnalyticsController) HandleGetPerformance(c *gin.Context) {
	source, ok := sourceParam(c)
	if !ok {
		return
	}

	summary, err := ac.performance.GetPerformanceSummary(c.Request.Context(), source)
	if err != nil {
		ac.logger.WithError(err).WithField("source", source).Error("Failed to compute performance")
		c.JSON(500, gin.H{"error": "failed to compute performance"})
		return
	}

	c.JSON(200, summary)
}

// HandleListOptimizationRuns handles GET /api/v1/optimization-runs
func (ac *AnalyticsController) HandleListOptimizationRuns(c *gin.Context) {
	runs, err := ac.optimization.ListOptimizationRuns(c.Request.Context())
	if err != nil {
		ac.logger.WithError(err).Error("Failed to list optimization runs")
		c.JSON(500, gin.H{"error": "failed to list optimization runs"})
		return
	}

	c.JSON(200, runs)
}
