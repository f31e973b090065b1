package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
)

// SQLiteUserRepository implements Repository on the shared SQLite handle.
type SQLiteUserRepository struct {
	db  *sqlitedb.DB
	log logging.Logger
}

var _ Repository = (*SQLiteUserRepository)(nil)

// NewSQLiteUserRepository creates a new SQLiteUserRepository using the shared
// database handle.
func NewSQLiteUserRepository(db *sqlitedb.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{
		db:  db,
		log: logging.GetLogger("repo.user.sqlite_user_repository"),
	}
}

// CreateUser implements Repository.CreateUser using SQLite.
func (r *SQLiteUserRepository) CreateUser(
	ctx context.Context,
	name, email string,
	passwordHash []byte,
	role domain.Role,
) (*domain.User, error) {
	defer r.db.Write()()

	user := domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().Unix(),
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)",
		user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", sqlitedb.ConstraintErr(err, domain.ErrEmailTaken))
	}

	if user.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &user, nil
}

// GetUser implements Repository.GetUser using SQLite.
func (r *SQLiteUserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	err := r.db.GetContext(ctx, &user,
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail implements Repository.GetUserByEmail using SQLite.
func (r *SQLiteUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	err := r.db.GetContext(ctx, &user,
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return nil, fmt.Errorf("query user by email: %w", err)
	}

	return &user, nil
}

// UserExists implements Repository.UserExists using SQLite.
func (r *SQLiteUserRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool

	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)", id)
	if err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}

	return exists, nil
}

// ListUsers implements Repository.ListUsers using SQLite.
func (r *SQLiteUserRepository) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	users := []domain.User{}

	err := r.db.SelectContext(ctx, &users,
		"SELECT id, name, email, password_hash, role, created_at FROM users ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	return users, nil
}

// UpdateUser implements Repository.UpdateUser using SQLite.
func (r *SQLiteUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, role = ? WHERE id = ?",
		user.Name, user.Email, user.Role, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", sqlitedb.ConstraintErr(err, domain.ErrEmailTaken))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// DeleteUser implements Repository.DeleteUser using SQLite.
func (r *SQLiteUserRepository) DeleteUser(ctx context.Context, id int64) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// CountUsers implements Repository.CountUsers using SQLite.
func (r *SQLiteUserRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64

	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}
