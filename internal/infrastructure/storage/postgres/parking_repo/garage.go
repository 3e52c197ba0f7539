package parking_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/domain/garage"
	"parkwise/internal/infrastructure/storage/postgres"
)

var garageCols = []string{
	"id", "code", "name", "address", "levels", "is_active",
	"version", "created_at", "updated_at",
}

// GarageRepo implements garage.Repository.
type GarageRepo struct {
	*BaseRepo[*garage.Garage]
}

// NewGarageRepo creates a new garage repository.
func NewGarageRepo(mgr *postgres.Manager) *GarageRepo {
	return &GarageRepo{
		BaseRepo: NewBaseRepo(mgr, "garages", garageCols, func() *garage.Garage {
			return &garage.Garage{}
		}),
	}
}

var _ garage.Repository = (*GarageRepo)(nil)

// GetByCode retrieves a garage by its unique code.
func (r *GarageRepo) GetByCode(ctx context.Context, code string) (*garage.Garage, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	g, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("garage", code)
		}
		return nil, err
	}
	return g, nil
}

// List retrieves a page of garages ordered by code.
func (r *GarageRepo) List(ctx context.Context, limit, offset int) ([]*garage.Garage, error) {
	q := r.baseSelect().OrderBy("code ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	var items []*garage.Garage
	if err := r.Select(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("list garages: %w", err)
	}
	return items, nil
}

// Count returns the total number of garages.
func (r *GarageRepo) Count(ctx context.Context) (int64, error) {
	return r.BaseRepo.Count(ctx, r.baseSelect())
}

// Delete removes a garage by ID.
func (r *GarageRepo) Delete(ctx context.Context, garageID id.ID) error {
	return r.BaseRepo.Delete(ctx, garageID)
}
