package parking_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/domain/spot"
	"parkwise/internal/infrastructure/storage/postgres"
)

var spotCols = []string{
	"id", "garage_id", "level", "number", "type", "status",
	"hourly_rate", "version", "created_at", "updated_at",
}

// SpotRepo implements spot.Repository.
type SpotRepo struct {
	*BaseRepo[*spot.Spot]
}

// NewSpotRepo creates a new spot repository.
func NewSpotRepo(mgr *postgres.Manager) *SpotRepo {
	return &SpotRepo{
		BaseRepo: NewBaseRepo(mgr, "spots", spotCols, func() *spot.Spot {
			return &spot.Spot{}
		}),
	}
}

var _ spot.Repository = (*SpotRepo)(nil)

// ListByGarage retrieves a page of spots ordered by level and number.
func (r *SpotRepo) ListByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*spot.Spot, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"garage_id": garageID}).
		OrderBy("level ASC", "number ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	var items []*spot.Spot
	if err := r.Select(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	return items, nil
}

// CountByStatus returns the number of spots per status for a garage.
func (r *SpotRepo) CountByStatus(ctx context.Context, garageID id.ID) (map[spot.SpotStatus]int64, error) {
	q := r.Builder().
		Select("status", "COUNT(*) AS cnt").
		From("spots").
		Where(squirrel.Eq{"garage_id": garageID}).
		GroupBy("status")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count by status: %w", err)
	}

	rows, err := r.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[spot.SpotStatus]int64)
	for rows.Next() {
		var status spot.SpotStatus
		var cnt int64
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, fmt.Errorf("scan count by status: %w", err)
		}
		counts[status] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by status rows: %w", err)
	}

	return counts, nil
}

// FindFree locates one free spot of the given type. FOR UPDATE SKIP LOCKED
// keeps concurrent check-ins from contending for the same row: each
// transaction locks a different candidate instead of queueing or
// deadlocking. Returns nil when the garage has no free spot of that type.
func (r *SpotRepo) FindFree(ctx context.Context, garageID id.ID, spotType spot.SpotType) (*spot.Spot, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"garage_id": garageID,
			"type":      spotType,
			"status":    spot.StatusFree,
		}).
		OrderBy("level ASC", "number ASC").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find free: %w", err)
	}

	s := &spot.Spot{}
	if err := pgxscan.Get(ctx, r.querier(ctx), s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find free spot: %w", err)
	}

	return s, nil
}

// UpdateStatus transitions a spot from one status to another. The WHERE
// clause on the expected status makes the transition atomic: zero rows
// affected means another transaction got there first.
func (r *SpotRepo) UpdateStatus(ctx context.Context, spotID id.ID, from, to spot.SpotStatus) error {
	q := r.Builder().
		Update("spots").
		Set("status", to).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": spotID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update spot status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewSpotUnavailable(spotID.String(), string(from))
	}

	return nil
}
