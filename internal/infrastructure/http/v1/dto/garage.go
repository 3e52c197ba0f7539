package dto

import (
	"time"

	"parkwise/internal/domain/garage"
)

// --- Request DTOs ---

// CreateGarageRequest is the request body for creating a garage.
type CreateGarageRequest struct {
	Code    string  `json:"code" binding:"required"`
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address"`
	Levels  int     `json:"levels" binding:"required,min=1"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateGarageRequest) ToEntity() *garage.Garage {
	g := garage.NewGarage(r.Code, r.Name, r.Levels)
	g.Address = r.Address
	return g
}

// UpdateGarageRequest is the request body for updating a garage.
type UpdateGarageRequest struct {
	Name     string  `json:"name" binding:"required"`
	Address  *string `json:"address,omitempty"`
	Levels   int     `json:"levels" binding:"required,min=1"`
	IsActive bool    `json:"isActive"`
	Version  int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateGarageRequest) ApplyTo(g *garage.Garage) {
	g.Name = r.Name
	g.Address = r.Address
	g.Levels = r.Levels
	g.IsActive = r.IsActive
	g.Version = r.Version
	g.UpdatedAt = time.Now().UTC()
}

// --- Response DTOs ---

// GarageResponse is the response body for a garage.
type GarageResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	Levels    int       `json:"levels"`
	IsActive  bool      `json:"isActive"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromGarage creates response DTO from domain entity.
func FromGarage(g *garage.Garage) *GarageResponse {
	return &GarageResponse{
		ID:        g.ID.String(),
		Code:      g.Code,
		Name:      g.Name,
		Address:   g.Address,
		Levels:    g.Levels,
		IsActive:  g.IsActive,
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}
