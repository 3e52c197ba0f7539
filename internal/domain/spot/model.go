// Package spot provides the parking-spot catalog.
package spot

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
)

// SpotType defines the kind of parking spot.
type SpotType string

const (
	TypeStandard SpotType = "standard"
	TypeCompact  SpotType = "compact"
	TypeEV       SpotType = "ev"
	TypeHandicap SpotType = "handicap"
)

// SpotStatus is the occupancy state of a spot.
type SpotStatus string

const (
	StatusFree        SpotStatus = "free"
	StatusOccupied    SpotStatus = "occupied"
	StatusReserved    SpotStatus = "reserved"
	StatusMaintenance SpotStatus = "maintenance"
)

// Spot represents one parking spot in a garage.
type Spot struct {
	ID       id.ID `db:"id" json:"id"`
	GarageID id.ID `db:"garage_id" json:"garageId"`

	// Level and Number locate the spot inside the garage
	Level  int    `db:"level" json:"level"`
	Number string `db:"number" json:"number"`

	Type   SpotType   `db:"type" json:"type"`
	Status SpotStatus `db:"status" json:"status"`

	// HourlyRate is stored and surfaced only; billing arithmetic lives
	// in the billing system.
	HourlyRate decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`

	// Version is used for optimistic locking
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewSpot creates a new Spot with required fields.
func NewSpot(garageID id.ID, level int, number string, spotType SpotType, rate decimal.Decimal) *Spot {
	now := time.Now().UTC()
	return &Spot{
		ID:         id.New(),
		GarageID:   garageID,
		Level:      level,
		Number:     number,
		Type:       spotType,
		Status:     StatusFree,
		HourlyRate: rate,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks spot fields before persistence.
func (s *Spot) Validate(ctx context.Context) error {
	if id.IsNil(s.GarageID) {
		return apperror.NewValidation("spot must belong to a garage").WithDetail("field", "garageId")
	}
	if s.Number == "" {
		return apperror.NewValidation("spot number is required").WithDetail("field", "number")
	}
	if !isValidSpotType(s.Type) {
		return apperror.NewValidation("invalid spot type").
			WithDetail("field", "type").
			WithDetail("value", string(s.Type))
	}
	if !IsValidStatus(s.Status) {
		return apperror.NewValidation("invalid spot status").
			WithDetail("field", "status").
			WithDetail("value", string(s.Status))
	}
	if s.HourlyRate.IsNegative() {
		return apperror.NewValidation("hourly rate cannot be negative").WithDetail("field", "hourlyRate")
	}
	return nil
}

// CanAccept reports whether a vehicle can check into the spot.
func (s *Spot) CanAccept() bool {
	return s.Status == StatusFree
}

// IsValidStatus reports whether the status value is known.
func IsValidStatus(st SpotStatus) bool {
	switch st {
	case StatusFree, StatusOccupied, StatusReserved, StatusMaintenance:
		return true
	}
	return false
}

func isValidSpotType(t SpotType) bool {
	switch t {
	case TypeStandard, TypeCompact, TypeEV, TypeHandicap:
		return true
	}
	return false
}
