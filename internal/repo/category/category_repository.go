package category

import (
	"context"

	"github.com/mkrupp/bookcase/internal/domain"
)

// Repository defines the interface for category data persistence.
type Repository interface {
	// CreateCategory adds a new category and returns it with its assigned ID.
	// Returns domain.ErrCategoryNameTaken if the name is already in use.
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)

	// GetCategory retrieves a category by ID.
	// Returns domain.ErrCategoryNotFound if no such category exists.
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)

	// CategoryExists reports whether a category with the given ID exists.
	CategoryExists(ctx context.Context, id int64) (bool, error)

	// ListCategories returns categories paginated by offset/limit.
	ListCategories(ctx context.Context, offset, limit int) ([]domain.Category, error)

	// ListCategoriesWithBookCounts returns all categories together with the
	// number of books each one contains, ordered by name.
	ListCategoriesWithBookCounts(ctx context.Context) ([]domain.CategoryBookCount, error)

	// UpdateCategory persists name and description of an existing category.
	// Returns domain.ErrCategoryNotFound or domain.ErrCategoryNameTaken.
	UpdateCategory(ctx context.Context, category *domain.Category) error

	// DeleteCategory removes a category.
	// Returns domain.ErrCategoryNotFound if absent.
	DeleteCategory(ctx context.Context, id int64) error
}
