package handlers

import (
	"github.com/gin-gonic/gin"

	"parkwise/internal/infrastructure/storage/postgres"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	*BaseHandler
	audit *postgres.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, audit *postgres.AuditService) *AuditHandler {
	return &AuditHandler{
		BaseHandler: base,
		audit:       audit,
	}
}

// EntityHistory handles GET /audit/:entityType/:id
func (h *AuditHandler) EntityHistory(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entityType := c.Param("entityType")
	limit := h.ParseIntQuery(c, "limit", 100)

	entries, err := h.audit.GetEntityHistory(c.Request.Context(), entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]gin.H, len(entries))
	for i, e := range entries {
		items[i] = gin.H{
			"id":         e.ID.String(),
			"entityType": e.EntityType,
			"entityId":   e.EntityID.String(),
			"action":     e.Action,
			"operatorId": e.OperatorID,
			"changes":    e.Changes,
			"createdAt":  e.CreatedAt,
		}
	}

	h.OK(c, gin.H{"items": items, "count": len(items)})
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:entityType/:id", h.EntityHistory)
}
