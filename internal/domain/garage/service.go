package garage

import (
	"context"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/core/tx"
)

// Service provides business logic for the Garage catalog.
type Service struct {
	repo Repository
	txm  tx.Manager
}

// NewService creates a new Garage service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm}
}

// Create validates and persists a new garage.
func (s *Service) Create(ctx context.Context, g *Garage) error {
	if err := g.Validate(ctx); err != nil {
		return err
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetByCode(ctx, g.Code); err == nil && existing != nil {
			return apperror.NewDuplicate("garage", "code", g.Code)
		}
		return s.repo.Create(ctx, g)
	})
}

// Update validates and persists garage changes.
func (s *Service) Update(ctx context.Context, g *Garage) error {
	if err := g.Validate(ctx); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, g)
	})
}

// GetByID fetches one garage.
func (s *Service) GetByID(ctx context.Context, garageID id.ID) (*Garage, error) {
	return s.repo.GetByID(ctx, garageID)
}

// List returns a page of garages plus the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Garage, int64, error) {
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete removes a garage.
func (s *Service) Delete(ctx context.Context, garageID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, garageID)
	})
}
