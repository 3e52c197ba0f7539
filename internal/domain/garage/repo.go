package garage

import (
	"context"

	"parkwise/internal/core/id"
)

// Repository defines the interface for Garage persistence.
type Repository interface {
	Create(ctx context.Context, g *Garage) error
	Update(ctx context.Context, g *Garage) error
	GetByID(ctx context.Context, garageID id.ID) (*Garage, error)
	GetByCode(ctx context.Context, code string) (*Garage, error)
	List(ctx context.Context, limit, offset int) ([]*Garage, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, garageID id.ID) error
}
