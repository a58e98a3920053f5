package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by a caller's access token. Tokens are
// issued by the account service; this service only validates them.
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Tier   Tier   `json:"tier"`
	jwt.RegisteredClaims
}
