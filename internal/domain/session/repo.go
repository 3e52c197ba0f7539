package session

import (
	"context"
	"time"

	"parkwise/internal/core/id"
)

// Repository defines the interface for ParkingSession persistence.
type Repository interface {
	Insert(ctx context.Context, s *ParkingSession) error
	GetByID(ctx context.Context, sessionID id.ID) (*ParkingSession, error)
	GetOpenByPlate(ctx context.Context, garageID id.ID, plate string) (*ParkingSession, error)
	ListOpenByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*ParkingSession, error)

	// Close marks an open session closed. Fails if already closed.
	Close(ctx context.Context, sessionID id.ID, at time.Time) error
}

// Auditor records session lifecycle events into the audit trail. The
// postgres audit service is adapted to this interface at wiring time.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}
