package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"parkwise/internal/domain/session"
	"parkwise/internal/domain/spot"
)

// --- Request DTOs ---

// CheckInRequest is the request body for a vehicle check-in.
type CheckInRequest struct {
	Plate    string        `json:"plate" binding:"required"`
	SpotType spot.SpotType `json:"spotType"`
}

// --- Response DTOs ---

// SessionResponse is the response body for a parking session.
type SessionResponse struct {
	ID           string          `json:"id"`
	GarageID     string          `json:"garageId"`
	SpotID       string          `json:"spotId"`
	Plate        string          `json:"plate"`
	State        session.State   `json:"state"`
	HourlyRate   decimal.Decimal `json:"hourlyRate"`
	CheckedInAt  time.Time       `json:"checkedInAt"`
	CheckedOutAt *time.Time      `json:"checkedOutAt,omitempty"`
	Version      int             `json:"version"`
}

// FromSession creates response DTO from domain entity.
func FromSession(s *session.ParkingSession) *SessionResponse {
	return &SessionResponse{
		ID:           s.ID.String(),
		GarageID:     s.GarageID.String(),
		SpotID:       s.SpotID.String(),
		Plate:        s.Plate,
		State:        s.State,
		HourlyRate:   s.HourlyRate,
		CheckedInAt:  s.CheckedInAt,
		CheckedOutAt: s.CheckedOutAt,
		Version:      s.Version,
	}
}
