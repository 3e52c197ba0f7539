package handlers

import (
	"github.com/gin-gonic/gin"

	"parkwise/internal/domain/garage"
	"parkwise/internal/infrastructure/http/v1/dto"
)

// GarageHandler handles the garage catalog endpoints.
type GarageHandler struct {
	*BaseHandler
	service *garage.Service
}

// NewGarageHandler creates a new garage handler.
func NewGarageHandler(base *BaseHandler, service *garage.Service) *GarageHandler {
	return &GarageHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /garages
func (h *GarageHandler) Create(c *gin.Context) {
	var req dto.CreateGarageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	g := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), g); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, g.ID.String())
}

// Get handles GET /garages/:id
func (h *GarageHandler) Get(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	g, err := h.service.GetByID(c.Request.Context(), garageID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromGarage(g))
}

// List handles GET /garages
func (h *GarageHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, total, err := h.service.List(c.Request.Context(), page.PageSize, page.Offset())
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]*dto.GarageResponse, len(items))
	for i, g := range items {
		responses[i] = dto.FromGarage(g)
	}

	h.OK(c, dto.ListResponse{
		Items:      responses,
		TotalCount: total,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

// Update handles PUT /garages/:id
func (h *GarageHandler) Update(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateGarageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	g, err := h.service.GetByID(ctx, garageID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(g)
	if err := h.service.Update(ctx, g); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromGarage(g))
}

// Delete handles DELETE /garages/:id
func (h *GarageHandler) Delete(c *gin.Context) {
	garageID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), garageID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers garage routes. Mutations go through adminOnly;
// reads are open to any authenticated operator.
func (h *GarageHandler) RegisterRoutes(rg *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	rg.POST("", adminOnly, h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", adminOnly, h.Update)
	rg.DELETE("/:id", adminOnly, h.Delete)
}
