package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"parkwise/internal/core/apperror"
	"parkwise/pkg/logger"
)

// Credential is one operator login backed by a bcrypt password hash.
type Credential struct {
	OperatorID   string
	Name         string
	PasswordHash []byte
	Roles        []string
	IsAdmin      bool
}

// Service authenticates operators and issues access tokens.
type Service struct {
	jwt *JWTService

	// credentials keyed by operator id. Provisioned at startup from
	// configuration; this deployment has a handful of garage operators,
	// not a user base.
	credentials map[string]Credential
}

// NewService creates the auth service.
func NewService(jwtService *JWTService, credentials []Credential) *Service {
	byID := make(map[string]Credential, len(credentials))
	for _, c := range credentials {
		byID[c.OperatorID] = c
	}
	return &Service{jwt: jwtService, credentials: byID}
}

// HashPassword produces a bcrypt hash for provisioning credentials.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Login verifies the password and returns a signed access token.
func (s *Service) Login(ctx context.Context, operatorID, password string) (string, time.Time, error) {
	cred, ok := s.credentials[operatorID]
	if !ok {
		// Burn comparable time for unknown operators.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0123456789012345678901uPlaceholderPlaceholderPlaceh"), []byte(password))
		return "", time.Time{}, apperror.NewUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		logger.Warn(ctx, "failed login attempt", "operator_id", operatorID)
		return "", time.Time{}, apperror.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(cred.OperatorID, cred.Name, cred.Roles, cred.IsAdmin)
	if err != nil {
		return "", time.Time{}, apperror.NewInternal(err)
	}

	logger.Info(ctx, "operator logged in", "operator_id", operatorID)
	return token, expiresAt, nil
}
