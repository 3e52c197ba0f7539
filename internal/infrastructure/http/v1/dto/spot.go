package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"parkwise/internal/core/id"
	"parkwise/internal/domain/spot"
)

// --- Request DTOs ---

// CreateSpotRequest is the request body for creating a spot.
type CreateSpotRequest struct {
	GarageID   string          `json:"garageId" binding:"required,uuid"`
	Level      int             `json:"level"`
	Number     string          `json:"number" binding:"required"`
	Type       spot.SpotType   `json:"type" binding:"required"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateSpotRequest) ToEntity(garageID id.ID) *spot.Spot {
	return spot.NewSpot(garageID, r.Level, r.Number, r.Type, r.HourlyRate)
}

// SetSpotStatusRequest transitions a spot's status.
type SetSpotStatusRequest struct {
	Status spot.SpotStatus `json:"status" binding:"required"`
}

// --- Response DTOs ---

// SpotResponse is the response body for a spot.
type SpotResponse struct {
	ID         string          `json:"id"`
	GarageID   string          `json:"garageId"`
	Level      int             `json:"level"`
	Number     string          `json:"number"`
	Type       spot.SpotType   `json:"type"`
	Status     spot.SpotStatus `json:"status"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// FromSpot creates response DTO from domain entity.
func FromSpot(s *spot.Spot) *SpotResponse {
	return &SpotResponse{
		ID:         s.ID.String(),
		GarageID:   s.GarageID.String(),
		Level:      s.Level,
		Number:     s.Number,
		Type:       s.Type,
		Status:     s.Status,
		HourlyRate: s.HourlyRate,
		Version:    s.Version,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// OccupancyResponse summarizes spot counts per status for a garage.
type OccupancyResponse struct {
	GarageID string                    `json:"garageId"`
	Counts   map[spot.SpotStatus]int64 `json:"counts"`
}
