package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route onto a fresh gin engine
func NewRouter(ledger *LedgerController, analytics *AnalyticsController, system *SystemController, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/health", system.HandleHealth)
	router.POST("/api/webhook/trade", ledger.HandleIngestTrade)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/trades", ledger.HandleIngestTrade)
		v1.GET("/trades", ledger.HandleListTrades)
		v1.GET("/equity", analytics.HandleGetEquity)
		v1.GET("/performance", analytics.HandleGetPerformance)
		v1.GET("/optimization-runs", analytics.HandleListOptimizationRuns)
		v1.GET("/markets", system.HandleListMarkets)
	}

	return router
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	}
}
