package book

import (
	"context"

	"github.com/mkrupp/bookcase/internal/domain"
)

// SearchField selects which book attribute a search query matches against.
type SearchField string

const (
	// SearchTitle matches against book titles.
	SearchTitle SearchField = "title"
	// SearchAuthor matches against author names.
	SearchAuthor SearchField = "author"
	// SearchCategory matches against category names.
	SearchCategory SearchField = "category"
	// SearchAll matches against titles, authors and category names.
	SearchAll SearchField = "all"
)

// Repository defines the interface for book data persistence.
// It doubles as the catalog store consulted by the loan ledger.
type Repository interface {
	// CreateBook adds a new book and returns it with its assigned ID.
	// Returns domain.ErrISBNTaken if the ISBN is already catalogued.
	CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error)

	// GetBook retrieves a book by ID.
	// Returns domain.ErrBookNotFound if no such book exists.
	GetBook(ctx context.Context, id int64) (*domain.Book, error)

	// BookExists reports whether a book with the given ID exists.
	BookExists(ctx context.Context, id int64) (bool, error)

	// ListBooks returns books paginated by offset/limit.
	ListBooks(ctx context.Context, offset, limit int) ([]domain.Book, error)

	// ListAvailableBooks returns books without an active loan,
	// paginated by offset/limit.
	ListAvailableBooks(ctx context.Context, offset, limit int) ([]domain.Book, error)

	// ListBooksByCategory returns all books of one category.
	ListBooksByCategory(ctx context.Context, categoryID int64) ([]domain.Book, error)

	// SearchBooks returns books whose selected field contains the query string.
	SearchBooks(ctx context.Context, query string, field SearchField) ([]domain.Book, error)

	// UpdateBook persists all mutable fields of an existing book.
	// Returns domain.ErrBookNotFound or domain.ErrISBNTaken.
	UpdateBook(ctx context.Context, book *domain.Book) error

	// DeleteBook removes a book. Returns domain.ErrBookNotFound if absent.
	DeleteBook(ctx context.Context, id int64) error

	// CountBooks returns the total number of catalogued books.
	CountBooks(ctx context.Context) (int64, error)

	// CountBooksInCategory returns the number of books referencing a category.
	CountBooksInCategory(ctx context.Context, categoryID int64) (int64, error)
}
