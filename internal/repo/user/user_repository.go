package user

import (
	"context"

	"github.com/mkrupp/bookcase/internal/domain"
)

// Repository defines the interface for user data persistence.
// It doubles as the credential store consulted by the loan ledger.
type Repository interface {
	// CreateUser adds a new user and returns it with its assigned ID.
	// Returns domain.ErrEmailTaken if the email is already registered.
	CreateUser(ctx context.Context, name, email string, passwordHash []byte, role domain.Role) (*domain.User, error)

	// GetUser retrieves a user by ID.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	// GetUserByEmail retrieves a user by login email.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UserExists reports whether a user with the given ID exists.
	UserExists(ctx context.Context, id int64) (bool, error)

	// ListUsers returns users paginated by offset/limit.
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error)

	// UpdateUser persists name, email and role of an existing user.
	// Returns domain.ErrUserNotFound or domain.ErrEmailTaken.
	UpdateUser(ctx context.Context, user *domain.User) error

	// DeleteUser removes a user. Returns domain.ErrUserNotFound if absent.
	DeleteUser(ctx context.Context, id int64) error

	// CountUsers returns the total number of registered users.
	CountUsers(ctx context.Context) (int64, error)
}
