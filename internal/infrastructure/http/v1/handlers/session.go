package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkwise/internal/domain/session"
	"parkwise/internal/infrastructure/http/v1/dto"
)

// SessionHandler handles parking session endpoints: check-in, check-out
// and session lookup.
type SessionHandler struct {
	*BaseHandler
	service *session.Service
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *BaseHandler, service *session.Service) *SessionHandler {
	return &SessionHandler{
		BaseHandler: base,
		service:     service,
	}
}

// CheckIn handles POST /garages/:id/check-in
func (h *SessionHandler) CheckIn(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CheckInRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sess, err := h.service.CheckIn(c.Request.Context(), session.CheckInRequest{
		GarageID: garageID,
		Plate:    req.Plate,
		SpotType: req.SpotType,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromSession(sess))
}

// CheckOut handles POST /sessions/:id/check-out
func (h *SessionHandler) CheckOut(c *gin.Context) {
	sessionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sess, err := h.service.CheckOut(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSession(sess))
}

// Get handles GET /sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sess, err := h.service.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSession(sess))
}

// ListOpen handles GET /garages/:id/sessions
func (h *SessionHandler) ListOpen(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, err := h.service.ListOpen(c.Request.Context(), garageID, page.PageSize, page.Offset())
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]*dto.SessionResponse, len(items))
	for i, s := range items {
		responses[i] = dto.FromSession(s)
	}

	h.OK(c, dto.ListResponse{
		Items:      responses,
		TotalCount: int64(len(responses)),
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(garages, sessions *gin.RouterGroup) {
	garages.POST("/:id/check-in", h.CheckIn)
	garages.GET("/:id/sessions", h.ListOpen)
	sessions.POST("/:id/check-out", h.CheckOut)
	sessions.GET("/:id", h.Get)
}
