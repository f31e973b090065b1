package domain

import "errors"

var (
	// ErrCategoryNotFound is returned when looking up a non-existent category.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryNameTaken is returned when trying to create or update a category
	// with a name that is already in use.
	ErrCategoryNameTaken = errors.New("category name already in use")
	// ErrCategoryHasBooks is returned when trying to delete a category that still
	// has books associated with it.
	ErrCategoryHasBooks = errors.New("category has associated books")
)

// Category groups books by subject.
type Category struct {
	ID          int64  `db:"id"`          // Unique identifier
	Name        string `db:"name"`        // Category name, unique
	Description string `db:"description"` // Optional description
}

// CategoryBookCount pairs a category with the number of books it contains.
type CategoryBookCount struct {
	Category
	BookCount int64 `db:"book_count"`
}
