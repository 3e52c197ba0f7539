package parking_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/domain/session"
	"parkwise/internal/infrastructure/storage/postgres"
)

var sessionCols = []string{
	"id", "garage_id", "spot_id", "plate", "state", "hourly_rate",
	"checked_in_at", "checked_out_at", "version",
}

// SessionRepo implements session.Repository.
type SessionRepo struct {
	*BaseRepo[*session.ParkingSession]
}

// NewSessionRepo creates a new parking session repository.
func NewSessionRepo(mgr *postgres.Manager) *SessionRepo {
	return &SessionRepo{
		BaseRepo: NewBaseRepo(mgr, "parking_sessions", sessionCols, func() *session.ParkingSession {
			return &session.ParkingSession{}
		}),
	}
}

var _ session.Repository = (*SessionRepo)(nil)

// Insert persists a new parking session.
func (r *SessionRepo) Insert(ctx context.Context, s *session.ParkingSession) error {
	return r.Create(ctx, s)
}

// GetOpenByPlate returns the open session for a plate in a garage, or nil
// when the vehicle is not checked in.
func (r *SessionRepo) GetOpenByPlate(ctx context.Context, garageID id.ID, plate string) (*session.ParkingSession, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"garage_id": garageID,
			"plate":     plate,
			"state":     session.StateOpen,
		}).
		Limit(1)

	s, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListOpenByGarage retrieves open sessions ordered by check-in time.
func (r *SessionRepo) ListOpenByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*session.ParkingSession, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"garage_id": garageID,
			"state":     session.StateOpen,
		}).
		OrderBy("checked_in_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	var items []*session.ParkingSession
	if err := r.Select(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	return items, nil
}

// Close marks an open session closed. The state predicate makes the close
// idempotency-safe: a session already closed by a concurrent request yields
// zero rows affected.
func (r *SessionRepo) Close(ctx context.Context, sessionID id.ID, at time.Time) error {
	q := r.Builder().
		Update("parking_sessions").
		Set("state", session.StateClosed).
		Set("checked_out_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": sessionID}).
		Where(squirrel.Eq{"state": session.StateOpen})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build close session: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewBusinessRule(apperror.CodeSessionClosed, "session is already closed").
			WithDetail("session_id", sessionID.String())
	}

	return nil
}
