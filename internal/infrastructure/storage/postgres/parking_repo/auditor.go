package parking_repo

import (
	"context"

	"parkwise/internal/core/id"
	"parkwise/internal/domain/session"
	"parkwise/internal/infrastructure/storage/postgres"
)

// SessionAuditor adapts the audit service to the session.Auditor interface.
type SessionAuditor struct {
	audit *postgres.AuditService
}

// NewSessionAuditor creates a session auditor backed by the audit service.
func NewSessionAuditor(audit *postgres.AuditService) *SessionAuditor {
	return &SessionAuditor{audit: audit}
}

var _ session.Auditor = (*SessionAuditor)(nil)

// LogChange records a session lifecycle event in the audit trail.
func (a *SessionAuditor) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	return a.audit.LogChange(ctx, entityType, entityID, postgres.AuditAction(action), changes)
}
