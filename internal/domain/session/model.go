// Package session provides parking sessions: one vehicle occupying one
// spot from check-in to check-out.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
)

// State is the lifecycle state of a parking session.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// ParkingSession records one vehicle's stay on one spot.
type ParkingSession struct {
	ID       id.ID `db:"id" json:"id"`
	GarageID id.ID `db:"garage_id" json:"garageId"`
	SpotID   id.ID `db:"spot_id" json:"spotId"`

	// Plate is the vehicle registration plate, normalized to upper case.
	Plate string `db:"plate" json:"plate"`

	State State `db:"state" json:"state"`

	// HourlyRate is the spot's rate snapshotted at check-in. The amount
	// due is computed by the billing system, not here.
	HourlyRate decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`

	CheckedInAt  time.Time  `db:"checked_in_at" json:"checkedInAt"`
	CheckedOutAt *time.Time `db:"checked_out_at" json:"checkedOutAt,omitempty"`

	// Version is used for optimistic locking
	Version int `db:"version" json:"version"`
}

// NormalizePlate canonicalizes a registration plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(plate), " ", ""))
}

// Validate checks session fields before persistence.
func (s *ParkingSession) Validate(ctx context.Context) error {
	if id.IsNil(s.GarageID) {
		return apperror.NewValidation("session must reference a garage").WithDetail("field", "garageId")
	}
	if id.IsNil(s.SpotID) {
		return apperror.NewValidation("session must reference a spot").WithDetail("field", "spotId")
	}
	if s.Plate == "" {
		return apperror.NewValidation("vehicle plate is required").WithDetail("field", "plate")
	}
	return nil
}
