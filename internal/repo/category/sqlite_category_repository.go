package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
)

//nolint:gochecknoglobals
var dialect = goqu.Dialect("sqlite3")

// SQLiteCategoryRepository implements Repository on the shared SQLite handle.
type SQLiteCategoryRepository struct {
	db  *sqlitedb.DB
	log logging.Logger
}

var _ Repository = (*SQLiteCategoryRepository)(nil)

// NewSQLiteCategoryRepository creates a new SQLiteCategoryRepository using the
// shared database handle.
func NewSQLiteCategoryRepository(db *sqlitedb.DB) *SQLiteCategoryRepository {
	return &SQLiteCategoryRepository{
		db:  db,
		log: logging.GetLogger("repo.category.sqlite_category_repository"),
	}
}

// CreateCategory implements Repository.CreateCategory using SQLite.
func (r *SQLiteCategoryRepository) CreateCategory(
	ctx context.Context,
	name, description string,
) (*domain.Category, error) {
	defer r.db.Write()()

	category := domain.Category{
		Name:        name,
		Description: description,
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, description) VALUES (?, ?)",
		category.Name, category.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", sqlitedb.ConstraintErr(err, domain.ErrCategoryNameTaken))
	}

	if category.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &category, nil
}

// GetCategory implements Repository.GetCategory using SQLite.
func (r *SQLiteCategoryRepository) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var category domain.Category

	err := r.db.GetContext(ctx, &category,
		"SELECT id, name, description FROM categories WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrCategoryNotFound, err)
		}

		return nil, fmt.Errorf("query category: %w", err)
	}

	return &category, nil
}

// CategoryExists implements Repository.CategoryExists using SQLite.
func (r *SQLiteCategoryRepository) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool

	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)", id)
	if err != nil {
		return false, fmt.Errorf("query category exists: %w", err)
	}

	return exists, nil
}

// ListCategories implements Repository.ListCategories using SQLite.
func (r *SQLiteCategoryRepository) ListCategories(
	ctx context.Context,
	offset, limit int,
) ([]domain.Category, error) {
	categories := []domain.Category{}

	err := r.db.SelectContext(ctx, &categories,
		"SELECT id, name, description FROM categories ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}

	return categories, nil
}

// ListCategoriesWithBookCounts implements Repository.ListCategoriesWithBookCounts
// using SQLite.
func (r *SQLiteCategoryRepository) ListCategoriesWithBookCounts(
	ctx context.Context,
) ([]domain.CategoryBookCount, error) {
	query, args, err := dialect.
		From(goqu.T("categories").As("c")).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.Ex{"b.category_id": goqu.I("c.id")})).
		Select(
			goqu.I("c.id").As("id"),
			goqu.I("c.name").As("name"),
			goqu.I("c.description").As("description"),
			goqu.COUNT(goqu.I("b.id")).As("book_count"),
		).
		GroupBy(goqu.I("c.id"), goqu.I("c.name"), goqu.I("c.description")).
		Order(goqu.I("c.name").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book counts query: %w", err)
	}

	counts := []domain.CategoryBookCount{}

	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("query book counts: %w", err)
	}

	return counts, nil
}

// UpdateCategory implements Repository.UpdateCategory using SQLite.
func (r *SQLiteCategoryRepository) UpdateCategory(ctx context.Context, category *domain.Category) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, description = ? WHERE id = ?",
		category.Name, category.Description, category.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", sqlitedb.ConstraintErr(err, domain.ErrCategoryNameTaken))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrCategoryNotFound
	}

	return nil
}

// DeleteCategory implements Repository.DeleteCategory using SQLite.
func (r *SQLiteCategoryRepository) DeleteCategory(ctx context.Context, id int64) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrCategoryNotFound
	}

	return nil
}
