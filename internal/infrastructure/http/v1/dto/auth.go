package dto

import "time"

// LoginRequest for operator login.
type LoginRequest struct {
	OperatorID string `json:"operatorId" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
}

// MeResponse describes the authenticated operator.
type MeResponse struct {
	OperatorID string   `json:"operatorId"`
	Name       string   `json:"name"`
	Roles      []string `json:"roles,omitempty"`
	IsAdmin    bool     `json:"isAdmin"`
}
