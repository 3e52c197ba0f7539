package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkwise/internal/core/apperror"
	"parkwise/internal/infrastructure/http/v1/dto"
	"parkwise/internal/infrastructure/storage/postgres"
)

// TransactionsHandler exposes the transaction manager's observability
// surface: active transactions, stored metrics and aggregate statistics.
type TransactionsHandler struct {
	*BaseHandler
	manager *postgres.Manager
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(base *BaseHandler, manager *postgres.Manager) *TransactionsHandler {
	return &TransactionsHandler{
		BaseHandler: base,
		manager:     manager,
	}
}

// Active handles GET /transactions/active
func (h *TransactionsHandler) Active(c *gin.Context) {
	active := h.manager.GetActiveTransactions()

	responses := make([]*dto.ActiveTransactionResponse, len(active))
	for i, txc := range active {
		responses[i] = dto.FromTxContext(txc)
	}

	h.OK(c, gin.H{"items": responses, "count": len(responses)})
}

// Metrics handles GET /transactions/metrics
func (h *TransactionsHandler) Metrics(c *gin.Context) {
	all := h.manager.GetAllTransactionMetrics()

	responses := make([]*dto.TxMetricsResponse, len(all))
	for i, m := range all {
		responses[i] = dto.FromTxMetrics(m)
	}

	h.OK(c, gin.H{"items": responses, "count": len(responses)})
}

// MetricsByID handles GET /transactions/metrics/:id
func (h *TransactionsHandler) MetricsByID(c *gin.Context) {
	txID := c.Param("id")
	if txID == "" {
		h.Error(c, apperror.NewValidation("transaction id is required"))
		return
	}

	m, ok := h.manager.GetTransactionMetrics(txID)
	if !ok {
		h.Error(c, apperror.NewNotFound("transaction", txID))
		return
	}

	h.OK(c, dto.FromTxMetrics(m))
}

// Statistics handles GET /transactions/statistics
func (h *TransactionsHandler) Statistics(c *gin.Context) {
	h.OK(c, dto.FromTxStatistics(h.manager.GetTransactionStatistics()))
}

// ClearMetrics handles DELETE /transactions/metrics?olderThanHours=24
func (h *TransactionsHandler) ClearMetrics(c *gin.Context) {
	hours := h.ParseIntQuery(c, "olderThanHours", 24)
	if hours <= 0 {
		h.Error(c, apperror.NewValidation("olderThanHours must be positive"))
		return
	}

	removed := h.manager.ClearOldMetrics(time.Duration(hours) * time.Hour)
	c.JSON(http.StatusOK, dto.ClearMetricsResponse{Removed: removed})
}

// RegisterRoutes registers transaction observability routes.
func (h *TransactionsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/active", h.Active)
	rg.GET("/metrics", h.Metrics)
	rg.GET("/metrics/:id", h.MetricsByID)
	rg.GET("/statistics", h.Statistics)
	rg.DELETE("/metrics", h.ClearMetrics)
}
