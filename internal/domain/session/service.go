package session

import (
	"context"
	"time"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/core/tx"
	"parkwise/internal/domain/spot"
)

// Service drives check-in and check-out. Both flows are multi-step units
// of work (spot transition + session row + audit entry) and run through
// the transaction manager with per-step savepoints, so a retried deadlock
// never double-books a spot.
type Service struct {
	sessions Repository
	spots    spot.Repository
	txm      tx.Manager
	auditor  Auditor
}

// NewService creates a new session service.
func NewService(sessions Repository, spots spot.Repository, txm tx.Manager, auditor Auditor) *Service {
	return &Service{
		sessions: sessions,
		spots:    spots,
		txm:      txm,
		auditor:  auditor,
	}
}

// CheckInRequest describes an arriving vehicle.
type CheckInRequest struct {
	GarageID id.ID
	Plate    string
	SpotType spot.SpotType
}

// CheckIn assigns a free spot to the vehicle and opens a session.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (*ParkingSession, error) {
	plate := NormalizePlate(req.Plate)
	if plate == "" {
		return nil, apperror.NewValidation("vehicle plate is required")
	}
	spotType := req.SpotType
	if spotType == "" {
		spotType = spot.TypeStandard
	}

	var sess *ParkingSession
	err := s.txm.RunSequence(ctx,
		tx.Operation{Name: "reserve_spot", Fn: func(ctx context.Context) error {
			if open, err := s.sessions.GetOpenByPlate(ctx, req.GarageID, plate); err == nil && open != nil {
				return apperror.NewConflict("vehicle already checked in").
					WithDetail("plate", plate).
					WithDetail("session_id", open.ID)
			}

			free, err := s.spots.FindFree(ctx, req.GarageID, spotType)
			if err != nil {
				return err
			}
			if free == nil {
				return apperror.NewGarageFull(req.GarageID.String())
			}
			if err := s.spots.UpdateStatus(ctx, free.ID, spot.StatusFree, spot.StatusOccupied); err != nil {
				return err
			}

			sess = &ParkingSession{
				ID:          id.New(),
				GarageID:    req.GarageID,
				SpotID:      free.ID,
				Plate:       plate,
				State:       StateOpen,
				HourlyRate:  free.HourlyRate,
				CheckedInAt: time.Now().UTC(),
				Version:     1,
			}
			return nil
		}},
		tx.Operation{Name: "open_session", Fn: func(ctx context.Context) error {
			if err := sess.Validate(ctx); err != nil {
				return err
			}
			return s.sessions.Insert(ctx, sess)
		}},
		tx.Operation{Name: "audit", Fn: func(ctx context.Context) error {
			return s.auditor.LogChange(ctx, "parking_session", sess.ID, "check_in", map[string]any{
				"plate":   sess.Plate,
				"spot_id": sess.SpotID,
			})
		}},
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// CheckOut closes the session and frees its spot.
func (s *Service) CheckOut(ctx context.Context, sessionID id.ID) (*ParkingSession, error) {
	var sess *ParkingSession
	err := s.txm.RunSequence(ctx,
		tx.Operation{Name: "close_session", Fn: func(ctx context.Context) error {
			var err error
			sess, err = s.sessions.GetByID(ctx, sessionID)
			if err != nil {
				return err
			}
			if sess.State != StateOpen {
				return apperror.NewBusinessRule(apperror.CodeSessionClosed, "session is already closed").
					WithDetail("session_id", sessionID)
			}
			now := time.Now().UTC()
			if err := s.sessions.Close(ctx, sessionID, now); err != nil {
				return err
			}
			sess.State = StateClosed
			sess.CheckedOutAt = &now
			return nil
		}},
		tx.Operation{Name: "free_spot", Fn: func(ctx context.Context) error {
			return s.spots.UpdateStatus(ctx, sess.SpotID, spot.StatusOccupied, spot.StatusFree)
		}},
		tx.Operation{Name: "audit", Fn: func(ctx context.Context) error {
			return s.auditor.LogChange(ctx, "parking_session", sess.ID, "check_out", map[string]any{
				"plate":   sess.Plate,
				"spot_id": sess.SpotID,
			})
		}},
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetByID fetches one session.
func (s *Service) GetByID(ctx context.Context, sessionID id.ID) (*ParkingSession, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// ListOpen returns open sessions for a garage.
func (s *Service) ListOpen(ctx context.Context, garageID id.ID, limit, offset int) ([]*ParkingSession, error) {
	return s.sessions.ListOpenByGarage(ctx, garageID, limit, offset)
}
