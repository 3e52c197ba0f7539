package spot

import (
	"context"

	"parkwise/internal/core/id"
)

// Repository defines the interface for Spot persistence.
type Repository interface {
	Create(ctx context.Context, s *Spot) error
	Update(ctx context.Context, s *Spot) error
	GetByID(ctx context.Context, spotID id.ID) (*Spot, error)
	ListByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*Spot, error)
	CountByStatus(ctx context.Context, garageID id.ID) (map[SpotStatus]int64, error)

	// FindFree locates one free spot of the given type with a row lock,
	// skipping rows locked by concurrent check-ins.
	FindFree(ctx context.Context, garageID id.ID, spotType SpotType) (*Spot, error)

	// UpdateStatus transitions a spot from one status to another. Fails if
	// the spot is no longer in the expected status.
	UpdateStatus(ctx context.Context, spotID id.ID, from, to SpotStatus) error
}
