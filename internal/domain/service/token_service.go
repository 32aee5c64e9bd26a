package service

import (
	"github.com/google/uuid"
)

// Claims is the identity the auth collaborator vouches for.
type Claims struct {
	UserID uuid.UUID
	Roles  []string
}

// TokenService validates access tokens issued by the auth collaborator.
// Credentials are never verified here; a valid signature is trusted.
type TokenService interface {
	// GenerateAccessToken issues a signed token, used by tooling and tests.
	GenerateAccessToken(userID uuid.UUID, roles []string) (string, error)

	// ValidateToken checks the signature and expiry and returns the claims.
	ValidateToken(tokenString string) (*Claims, error)
}
