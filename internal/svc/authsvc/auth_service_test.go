package authsvc_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
	"github.com/mkrupp/bookcase/internal/repo/user"
	"github.com/mkrupp/bookcase/internal/svc/authsvc"
)

var (
	client    = domain.Caller{UserID: 10, Role: domain.RoleClient}
	librarian = domain.Caller{UserID: 99, Role: domain.RoleLibrarian}
)

func setupAuthService(t *testing.T) *authsvc.AuthService {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.Config{
		DatabasePath: filepath.Join(t.TempDir(), "auth.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	signingKey, err := authsvc.GeneratePrivateKey(2048)
	require.NoError(t, err)

	return &authsvc.AuthService{
		Config: authsvc.AuthConfig{
			TokenDuration: 3600,
			BcryptCost:    bcrypt.MinCost,
		},
		Users:      user.NewSQLiteUserRepository(db),
		Log:        logging.GetLogger("test.authsvc"),
		SigningKey: signingKey,
	}
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		role     domain.Role
		wantErr  error
	}{
		{
			name:     "librarian registration",
			userName: "Alice",
			email:    "alice@example.com",
			password: "secret1",
			role:     domain.RoleLibrarian,
		},
		{
			name:     "empty role defaults to client",
			userName: "Bob",
			email:    "bob@example.com",
			password: "secret1",
		},
		{
			name:     "duplicate email",
			userName: "Other Alice",
			email:    "alice@example.com",
			password: "secret1",
			wantErr:  domain.ErrEmailTaken,
		},
		{
			name:     "empty name",
			userName: "  ",
			email:    "carol@example.com",
			password: "secret1",
			wantErr:  domain.ErrEmptyField,
		},
		{
			name:     "empty email",
			userName: "Carol",
			email:    "",
			password: "secret1",
			wantErr:  domain.ErrEmptyField,
		},
		{
			name:     "password too short",
			userName: "Carol",
			email:    "carol@example.com",
			password: "12345",
			wantErr:  domain.ErrPasswordTooShort,
		},
		{
			name:     "unknown role",
			userName: "Carol",
			email:    "carol@example.com",
			password: "secret1",
			role:     "superuser",
			wantErr:  domain.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := svc.Register(ctx, tt.userName, tt.email, tt.password, tt.role)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotZero(t, created.ID)

			wantRole := tt.role
			if wantRole == "" {
				wantRole = domain.RoleClient
			}

			assert.Equal(t, wantRole, created.Role)
			assert.NotEqual(t, []byte(tt.password), created.PasswordHash)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleLibrarian)
	require.NoError(t, err)

	token, account, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, account.ID)

	// Wrong password and unknown email fail identically.
	_, _, err = svc.Login(ctx, "alice@example.com", "wrongpass")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleLibrarian)
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	caller, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, caller.UserID)
	assert.Equal(t, domain.RoleLibrarian, caller.Role)
	assert.True(t, caller.Can(domain.CapWrite))
}

func TestAuthService_ValidateToken_Invalid(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "not base64", token: "%%%"},
		{name: "garbage payload", token: "aGVsbG8gd29ybGQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.ValidateToken(ctx, tt.token)
			require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
		})
	}
}

func TestAuthService_ValidateToken_Expired(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	svc.Config.TokenDuration = -10

	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, token)
	require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
}

func TestAuthService_ValidateToken_ForeignKey(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	other := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	// A token signed with another service's key does not verify.
	_, err = other.ValidateToken(ctx, token)
	require.ErrorIs(t, err, domain.ErrInvalidAuthToken)
}

func TestAuthService_GetUser(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	self := domain.Caller{UserID: registered.ID, Role: domain.RoleClient}

	account, err := svc.GetUser(ctx, self, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.Email, account.Email)

	// Other clients may not read the account, the librarian may.
	_, err = svc.GetUser(ctx, client, registered.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetUser(ctx, librarian, registered.ID)
	require.NoError(t, err)

	_, err = svc.GetUser(ctx, librarian, 4711)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_ListUsers(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Bob", "bob@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	_, err = svc.ListUsers(ctx, client, 0, 10)
	require.ErrorIs(t, err, domain.ErrForbidden)

	users, err := svc.ListUsers(ctx, librarian, 0, 10)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAuthService_UpdateUser(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	self := domain.Caller{UserID: registered.ID, Role: domain.RoleClient}

	// Clients rename themselves.
	name := "Alice B."
	updated, err := svc.UpdateUser(ctx, self, registered.ID, authsvc.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", updated.Name)

	// Role changes always require elevation, even on the own account.
	role := domain.RoleLibrarian
	_, err = svc.UpdateUser(ctx, self, registered.ID, authsvc.UserUpdate{Role: &role})
	require.ErrorIs(t, err, domain.ErrForbidden)

	updated, err = svc.UpdateUser(ctx, librarian, registered.ID, authsvc.UserUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleLibrarian, updated.Role)

	badRole := domain.Role("superuser")
	_, err = svc.UpdateUser(ctx, librarian, registered.ID, authsvc.UserUpdate{Role: &badRole})
	require.ErrorIs(t, err, domain.ErrInvalidRole)

	empty := " "
	_, err = svc.UpdateUser(ctx, self, registered.ID, authsvc.UserUpdate{Email: &empty})
	require.ErrorIs(t, err, domain.ErrEmptyField)

	// Updating someone else's account requires elevation.
	_, err = svc.UpdateUser(ctx, client, registered.ID, authsvc.UserUpdate{Name: &name})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAuthService_DeleteUser(t *testing.T) {
	t.Parallel()

	svc := setupAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "Alice", "alice@example.com", "secret1", domain.RoleClient)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteUser(ctx, client, registered.ID), domain.ErrForbidden)
	require.NoError(t, svc.DeleteUser(ctx, librarian, registered.ID))
	require.ErrorIs(t, svc.DeleteUser(ctx, librarian, registered.ID), domain.ErrUserNotFound)
}
