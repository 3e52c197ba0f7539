// Package garage provides the garage catalog. A garage is one physical
// facility with a fixed set of parking spots spread over levels.
package garage

import (
	"context"
	"time"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
)

// Garage represents one parking facility.
type Garage struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// Levels is the number of parking levels
	Levels int `db:"levels" json:"levels"`

	// IsActive indicates if the garage accepts vehicles
	IsActive bool `db:"is_active" json:"isActive"`

	// Version is used for optimistic locking
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewGarage creates a new Garage with required fields.
func NewGarage(code, name string, levels int) *Garage {
	now := time.Now().UTC()
	return &Garage{
		ID:        id.New(),
		Code:      code,
		Name:      name,
		Levels:    levels,
		IsActive:  true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks garage fields before persistence.
func (g *Garage) Validate(ctx context.Context) error {
	if g.Code == "" {
		return apperror.NewValidation("garage code is required").WithDetail("field", "code")
	}
	if g.Name == "" {
		return apperror.NewValidation("garage name is required").WithDetail("field", "name")
	}
	if g.Levels < 1 {
		return apperror.NewValidation("garage must have at least one level").
			WithDetail("field", "levels").
			WithDetail("value", g.Levels)
	}
	return nil
}
