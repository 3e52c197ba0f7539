package handlers

import (
	"github.com/gin-gonic/gin"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/domain/spot"
	"parkwise/internal/infrastructure/http/v1/dto"
)

// SpotHandler handles the spot catalog endpoints.
type SpotHandler struct {
	*BaseHandler
	service *spot.Service
}

// NewSpotHandler creates a new spot handler.
func NewSpotHandler(base *BaseHandler, service *spot.Service) *SpotHandler {
	return &SpotHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /garages/:id/spots
func (h *SpotHandler) Create(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateSpotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.GarageID != "" {
		bodyGarageID, err := id.Parse(req.GarageID)
		if err != nil || bodyGarageID != garageID {
			h.Error(c, apperror.NewValidation("garage id mismatch"))
			return
		}
	}

	sp := req.ToEntity(garageID)
	if err := h.service.Create(c.Request.Context(), sp); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, sp.ID.String())
}

// Get handles GET /spots/:id
func (h *SpotHandler) Get(c *gin.Context) {
	spotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	sp, err := h.service.GetByID(c.Request.Context(), spotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSpot(sp))
}

// ListByGarage handles GET /garages/:id/spots
func (h *SpotHandler) ListByGarage(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, counts, err := h.service.ListByGarage(c.Request.Context(), garageID, page.PageSize, page.Offset())
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]*dto.SpotResponse, len(items))
	for i, sp := range items {
		responses[i] = dto.FromSpot(sp)
	}

	var total int64
	for _, cnt := range counts {
		total += cnt
	}

	h.OK(c, dto.ListResponse{
		Items:      responses,
		TotalCount: total,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

// Occupancy handles GET /garages/:id/occupancy
func (h *SpotHandler) Occupancy(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	_, counts, err := h.service.ListByGarage(c.Request.Context(), garageID, 1, 0)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.OccupancyResponse{
		GarageID: garageID.String(),
		Counts:   counts,
	})
}

// SetStatus handles PUT /spots/:id/status
func (h *SpotHandler) SetStatus(c *gin.Context) {
	spotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetSpotStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), spotID, req.Status); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "status updated")
}

// RegisterRoutes registers spot routes.
func (h *SpotHandler) RegisterRoutes(garages, spots *gin.RouterGroup) {
	garages.POST("/:id/spots", h.Create)
	garages.GET("/:id/spots", h.ListByGarage)
	garages.GET("/:id/occupancy", h.Occupancy)
	spots.GET("/:id", h.Get)
	spots.PUT("/:id/status", h.SetStatus)
}
