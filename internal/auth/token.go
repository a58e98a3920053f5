package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager validates access tokens issued by the account service. It can
// also mint tokens for local development and tests.
type TokenManager struct {
	secret      []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, tokenExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

// GenerateAccessToken creates an access token carrying the caller's tier
func (tm *TokenManager) GenerateAccessToken(userID, email string, tier models.Tier) (string, error) {
	now := tm.now()

	claims := &models.TokenClaims{
		Type:   "access",
		UserID: userID,
		Email:  email,
		Tier:   tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims. A missing tier is
// treated as free; an unrecognised tier is rejected.
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "access" {
		return nil, fmt.Errorf("%w: not an access token", models.ErrUnauthorized)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", models.ErrUnauthorized)
	}

	if claims.Tier == "" {
		claims.Tier = models.TierFree
	} else {
		tier, err := models.ParseTier(string(claims.Tier))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
		}
		claims.Tier = tier
	}

	return claims, nil
}
