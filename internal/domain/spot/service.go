package spot

import (
	"context"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/core/tx"
)

// Service provides business logic for the Spot catalog.
type Service struct {
	repo Repository
	txm  tx.Manager
}

// NewService creates a new Spot service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm}
}

// Create validates and persists a new spot.
func (s *Service) Create(ctx context.Context, sp *Spot) error {
	if err := sp.Validate(ctx); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, sp)
	})
}

// GetByID fetches one spot.
func (s *Service) GetByID(ctx context.Context, spotID id.ID) (*Spot, error) {
	return s.repo.GetByID(ctx, spotID)
}

// ListByGarage returns spots for a garage with their status breakdown.
func (s *Service) ListByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*Spot, map[SpotStatus]int64, error) {
	items, err := s.repo.ListByGarage(ctx, garageID, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, garageID)
	if err != nil {
		return nil, nil, err
	}
	return items, counts, nil
}

// SetStatus moves a spot between operator-controlled statuses (free,
// reserved, maintenance). Occupied is owned by the session flow.
func (s *Service) SetStatus(ctx context.Context, spotID id.ID, to SpotStatus) error {
	if !IsValidStatus(to) {
		return apperror.NewValidation("invalid spot status").WithDetail("value", string(to))
	}
	if to == StatusOccupied {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "occupied status is managed by check-in")
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sp, err := s.repo.GetByID(ctx, spotID)
		if err != nil {
			return err
		}
		if sp.Status == StatusOccupied {
			return apperror.NewSpotUnavailable(spotID.String(), string(sp.Status))
		}
		return s.repo.UpdateStatus(ctx, spotID, sp.Status, to)
	})
}
