package controllers

import (
	"errors"
	"strconv"

	"helios-ledger/interfaces"
	"helios-ledger/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookSecretHeader carries the shared secret of the trade webhook
const WebhookSecretHeader = "X-Webhook-Secret"

// LedgerController handles trade ingestion and the trade list
type LedgerController struct {
	ingestion *services.IngestionService
	query     *services.LedgerQueryService
	logger    *logrus.Logger
}

// NewLedgerController creates a new ledger controller
func NewLedgerController(ingestion *services.IngestionService, query *services.LedgerQueryService, log *logrus.Logger) *LedgerController {
	return &LedgerController{
		ingestion: ingestion,
		query:     query,
		logger:    log,
	}
}

// HandleIngestTrade handles POST /api/v1/trades
func (lc *LedgerController) HandleIngestTrade(c *gin.Context) {
	// Authenticate before touching the body.
	if err := lc.ingestion.Authenticate(c.GetHeader(WebhookSecretHeader)); err != nil {
		lc.logger.WithField("client_ip", c.ClientIP()).Warn("Rejected trade webhook")
		respondError(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondError(c, services.ErrMalformedRequest)
		return
	}

	result, err := lc.ingestion.Ingest(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, result)
}

// HandleListTrades handles GET /api/v1/trades
func (lc *LedgerController) HandleListTrades(c *gin.Context) {
	source, ok := sourceParam(c)
	if !ok {
		return
	}

	limit := services.DefaultTradeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(400, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	trades, err := lc.query.ListTrades(c.Request.Context(), source, limit)
	if err != nil {
		lc.logger.WithError(err).Error("Failed to list trades")
		c.JSON(500, gin.H{"error": "failed to list trades"})
		return
	}

	c.JSON(200, trades)
}

// sourceParam reads ?source=, defaulting to backtest. It writes the 400
// response itself and returns false on an unknown source.
func sourceParam(c *gin.Context) (interfaces.Source, bool) {
	raw := c.DefaultQuery("source", string(interfaces.SourceBacktest))
	source, err := interfaces.ParseSource(raw)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return "", false
	}
	return source, true
}

// respondError maps service errors onto status codes
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var storageErr *services.StorageError

	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(401, gin.H{"error": "unauthorized"})
	case errors.Is(err, services.ErrMalformedRequest):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(400, gin.H{"error": "validation failed", "field": validationErr.Field, "details": validationErr.Reason})
	case errors.Is(err, services.ErrNotConfigured):
		c.JSON(503, gin.H{"error": err.Error()})
	case errors.As(err, &storageErr):
		c.JSON(500, gin.H{"error": "storage failure", "details": storageErr.Op})
	default:
		c.JSON(500, gin.H{"error": "internal error"})
	}
}
