package domain

import "errors"

var (
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when trying to create or update a user with an email
	// that is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordTooShort is returned when a password does not meet the minimum length.
	ErrPasswordTooShort = errors.New("password must have at least 6 characters")
	// ErrInvalidRole is returned when a role string is neither librarian nor client.
	ErrInvalidRole = errors.New("invalid role")
)

// MinPasswordLength is the minimum accepted password length for registration.
const MinPasswordLength = 6

// Role determines what a user is allowed to do.
type Role string

const (
	// RoleLibrarian is the elevated role: catalog mutation and cross-user loan operations.
	RoleLibrarian Role = "librarian"
	// RoleClient is the default role: operations scoped to the user's own records.
	RoleClient Role = "client"
)

// ParseRole converts a stored role string into a Role.
// Returns ErrInvalidRole for anything other than the two known roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleLibrarian, RoleClient:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// User represents a registered library user.
type User struct {
	ID           int64  `db:"id"`            // Unique identifier
	Name         string `db:"name"`          // Display name
	Email        string `db:"email"`         // Login email, unique
	PasswordHash []byte `db:"password_hash"` // bcrypt hash
	Role         Role   `db:"role"`          // librarian or client
	CreatedAt    int64  `db:"created_at"`    // Unix timestamp of registration
}
