package controllers

import (
	"helios-ledger/interfaces"
	"helios-ledger/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SystemController serves markets and health
type SystemController struct {
	source interfaces.DataSource
	health *services.HealthService
	logger *logrus.Logger
}

func NewSystemController(source interfaces.DataSource, health *services.HealthService, log *logrus.Logger) *SystemController {
	return &SystemController{
		source: source,
		health: health,
		logger: log,
	}
}

// HandleListMarkets handles GET /api/v1/markets
func (sc *SystemController) HandleListMarkets(c *gin.Context) {
	markets, err := sc.source.ListMarkets(c.Request.Context())
	if err != nil {
		sc.logger.WithError(err).Error("Failed to list markets")
		c.JSON(500, gin.H{"error": "failed to list markets"})
		return
	}
	if markets == nil {
		markets = []*interfaces.Market{}
	}

	c.JSON(200, markets)
}

// HandleHealth handles GET /health
func (sc *SystemController) HandleHealth(c *gin.Context) {
	c.JSON(200, sc.health.Check(c.Request.Context()))
}
