// Package authsvc provides registration, login, signed auth tokens and
// user-account management.
package authsvc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/bookcase/internal/domain"
	context_ "github.com/mkrupp/bookcase/internal/infra/context"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/user"
)

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/librarysvc.key"`

	// TokenDuration is the validity duration of auth tokens in seconds
	TokenDuration int64 `env:"TOKEN_DURATION" default:"3600"` // 1h

	// BcryptCost is the bcrypt cost factor for password hashing
	BcryptCost int `env:"BCRYPT_COST" default:"10"`
}

// AuthService handles user registration, login, token validation and
// user-account management.
type AuthService struct {
	Config     AuthConfig
	Users      user.Repository
	Log        logging.Logger
	SigningKey *rsa.PrivateKey
}

// NewAuthService creates a new AuthService with the given user repository and
// configuration. Returns an error if the signing key cannot be loaded.
func NewAuthService(users user.Repository, cfg AuthConfig) (*AuthService, error) {
	signingKey, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return &AuthService{
		Config:     cfg,
		Users:      users,
		Log:        logging.GetLogger("svc.authsvc.auth_service"),
		SigningKey: signingKey,
	}, nil
}

// Register creates a new user account. An empty role defaults to client.
// The password is bcrypt-hashed before storage.
// Returns domain.ErrEmptyField, domain.ErrPasswordTooShort,
// domain.ErrInvalidRole or domain.ErrEmailTaken.
func (s *AuthService) Register(
	ctx context.Context,
	name, email, password string,
	role domain.Role,
) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name", domain.ErrEmptyField)
	}

	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email", domain.ErrEmptyField)
	}

	if len(password) < domain.MinPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}

	if role == "" {
		role = domain.RoleClient
	}

	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.Config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.Users.CreateUser(ctx, name, email, passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

// Login authenticates a user and generates a signed token. Unknown email and
// wrong password are indistinguishable to the caller.
// Returns the encoded token and the user, or domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ string, _ *domain.User, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	account, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, errors.Join(domain.ErrInvalidCredentials, err)
		}

		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiry := now.Add(time.Duration(s.Config.TokenDuration * int64(time.Second)))
	token := domain.AuthToken{
		TokenID:   uuid.NewString(),
		UserID:    account.ID,
		Email:     account.Email,
		Role:      account.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiry.Unix(),
	}

	log = log.With(logging.Group("token",
		"jti", token.TokenID,
		"sub", token.UserID,
		"role", token.Role,
		"exp", expiry.UTC().Format(time.RFC3339),
		"iat", now.UTC().Format(time.RFC3339),
	))

	tokenBytes, err := json.Marshal(token)
	if err != nil {
		return "", nil, fmt.Errorf("marshal token: %w", err)
	}

	hashed := sha256.Sum256(tokenBytes)

	signature, err := rsa.SignPSS(rand.Reader, s.SigningKey, crypto.SHA256, hashed[:], nil)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(append(tokenBytes, signature...)), account, nil
}

// ValidateToken verifies a token's signature and expiration and returns the
// caller identity it carries.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (_ domain.Caller, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}()

	token, err := ValidateToken(ctx, tokenString, &s.SigningKey.PublicKey)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("validate token: %w", err)
	}

	log = log.With(logging.Group("token",
		"jti", token.TokenID,
		"sub", token.UserID,
		"role", token.Role,
	))

	return token.Caller(), nil
}

// GetUser retrieves a user account. Callers may read their own account;
// reading another account requires the read-all capability.
func (s *AuthService) GetUser(ctx context.Context, caller domain.Caller, id int64) (*domain.User, error) {
	if id == caller.UserID {
		if err := caller.Authorize(domain.CapReadOwn); err != nil {
			return nil, err
		}
	} else if err := caller.Authorize(domain.CapReadAll); err != nil {
		return nil, err
	}

	account, err := s.Users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return account, nil
}

// ListUsers returns user accounts paginated by offset/limit.
// Requires the read-all capability.
func (s *AuthService) ListUsers(
	ctx context.Context,
	caller domain.Caller,
	offset, limit int,
) ([]domain.User, error) {
	if err := caller.Authorize(domain.CapReadAll); err != nil {
		return nil, err
	}

	users, err := s.Users.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// UserUpdate holds the optional field changes for updating a user.
// Nil fields are left unchanged.
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *domain.Role
}

// UpdateUser applies the non-nil fields of update to a user account. Callers
// may update their own name and email; changing another user's account or
// any role requires the write capability.
func (s *AuthService) UpdateUser(
	ctx context.Context,
	caller domain.Caller,
	id int64,
	update UserUpdate,
) (_ *domain.User, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user updated")
		}
	}()

	if id != caller.UserID || update.Role != nil {
		if err := caller.Authorize(domain.CapWrite); err != nil {
			return nil, err
		}
	}

	account, err := s.Users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return nil, fmt.Errorf("%w: name", domain.ErrEmptyField)
		}

		account.Name = *update.Name
	}

	if update.Email != nil {
		if strings.TrimSpace(*update.Email) == "" {
			return nil, fmt.Errorf("%w: email", domain.ErrEmptyField)
		}

		account.Email = *update.Email
	}

	if update.Role != nil {
		if _, err := domain.ParseRole(string(*update.Role)); err != nil {
			return nil, err
		}

		account.Role = *update.Role
	}

	if err := s.Users.UpdateUser(ctx, account); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return account, nil
}

// DeleteUser removes a user account. Requires the write capability.
func (s *AuthService) DeleteUser(ctx context.Context, caller domain.Caller, id int64) (err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user deleted")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return err
	}

	if err := s.Users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}
