package domain

import "errors"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
)

// AuthToken is the signed payload identifying an authenticated user.
type AuthToken struct {
	TokenID   string `json:"jti"`       // Unique token identifier
	UserID    int64  `json:"sub"`       // Identifier of the authenticated user
	Email     string `json:"email"`     // Login email at issue time
	Role      Role   `json:"role"`      // Role at issue time
	IssuedAt  int64  `json:"issuedAt"`  // Unix timestamp when the token was created
	ExpiresAt int64  `json:"expiresAt"` // Unix timestamp when the token expires
}

// Caller returns the caller identity carried by the token.
func (t AuthToken) Caller() Caller {
	return Caller{UserID: t.UserID, Role: t.Role}
}

// AuthTokenResponse represents a response containing an authentication token.
type AuthTokenResponse struct {
	Token string `json:"token"`
}
