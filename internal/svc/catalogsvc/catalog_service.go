// Package catalogsvc manages books and categories and guards their deletion
// against the loan ledger.
package catalogsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/bookcase/internal/domain"
	context_ "github.com/mkrupp/bookcase/internal/infra/context"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/book"
	"github.com/mkrupp/bookcase/internal/repo/category"
)

// AvailabilityChecker is the view of the loan ledger the catalog consults
// before deleting a book.
type AvailabilityChecker interface {
	// IsBookAvailable reports whether the book has no active loan.
	IsBookAvailable(ctx context.Context, bookID int64) (bool, error)
}

// BookParams are the inputs for creating a book.
type BookParams struct {
	Title      string
	Author     string
	ISBN       string
	Publisher  string
	CategoryID int64
}

// BookUpdate holds the optional field changes for updating a book.
// Nil fields are left unchanged.
type BookUpdate struct {
	Title      *string
	Author     *string
	ISBN       *string
	Publisher  *string
	CategoryID *int64
}

// CategoryUpdate holds the optional field changes for updating a category.
// Nil fields are left unchanged.
type CategoryUpdate struct {
	Name        *string
	Description *string
}

// BookView is a book with its category resolved and its availability derived
// from the loan ledger.
type BookView struct {
	domain.Book

	Category  domain.Category
	Available bool
}

// CatalogService provides book and category management.
type CatalogService struct {
	Books      book.Repository
	Categories category.Repository
	Ledger     AvailabilityChecker
	Log        logging.Logger
}

// NewCatalogService creates a new CatalogService on top of the book and
// category repositories and the loan ledger.
func NewCatalogService(
	books book.Repository,
	categories category.Repository,
	ledger AvailabilityChecker,
) *CatalogService {
	return &CatalogService{
		Books:      books,
		Categories: categories,
		Ledger:     ledger,
		Log:        logging.GetLogger("svc.catalogsvc.catalog_service"),
	}
}

// CreateBook adds a new book to the catalog. Requires the write capability.
// The ISBN is normalized before storage; the category must exist.
func (s *CatalogService) CreateBook(
	ctx context.Context,
	caller domain.Caller,
	params BookParams,
) (_ BookView, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("book", "isbn", params.ISBN))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create book failed", "error", err)
		} else {
			log.DebugContext(ctx, "book created")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return BookView{}, err
	}

	if err := requireFields(map[string]string{
		"title":  params.Title,
		"author": params.Author,
		"isbn":   params.ISBN,
	}); err != nil {
		return BookView{}, err
	}

	isbn, err := domain.NormalizeISBN(params.ISBN)
	if err != nil {
		return BookView{}, err
	}

	cat, err := s.Categories.GetCategory(ctx, params.CategoryID)
	if err != nil {
		return BookView{}, fmt.Errorf("get category: %w", err)
	}

	created, err := s.Books.CreateBook(ctx, &domain.Book{
		Title:      params.Title,
		Author:     params.Author,
		ISBN:       isbn,
		Publisher:  params.Publisher,
		CategoryID: params.CategoryID,
	})
	if err != nil {
		return BookView{}, fmt.Errorf("create book: %w", err)
	}

	// A new book has no loans and is always available.
	return BookView{Book: *created, Category: *cat, Available: true}, nil
}

// GetBook retrieves a book with its category and current availability.
func (s *CatalogService) GetBook(ctx context.Context, id int64) (BookView, error) {
	found, err := s.Books.GetBook(ctx, id)
	if err != nil {
		return BookView{}, fmt.Errorf("get book: %w", err)
	}

	return s.toView(ctx, *found)
}

// ListBooks returns catalogued books with availability, paginated by
// offset/limit.
func (s *CatalogService) ListBooks(ctx context.Context, offset, limit int) ([]BookView, error) {
	books, err := s.Books.ListBooks(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return s.toViews(ctx, books)
}

// ListAvailableBooks returns books without an active loan, paginated by
// offset/limit.
func (s *CatalogService) ListAvailableBooks(ctx context.Context, offset, limit int) ([]BookView, error) {
	books, err := s.Books.ListAvailableBooks(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}

	views := make([]BookView, 0, len(books))

	for _, b := range books {
		cat, err := s.Categories.GetCategory(ctx, b.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("get category: %w", err)
		}

		views = append(views, BookView{Book: b, Category: *cat, Available: true})
	}

	return views, nil
}

// SearchBooks returns books whose selected field contains the query string.
func (s *CatalogService) SearchBooks(
	ctx context.Context,
	query string,
	field book.SearchField,
) ([]BookView, error) {
	books, err := s.Books.SearchBooks(ctx, query, field)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	return s.toViews(ctx, books)
}

// ListBooksByCategory returns all books of one category.
// Returns domain.ErrCategoryNotFound when the category does not exist.
func (s *CatalogService) ListBooksByCategory(ctx context.Context, categoryID int64) ([]BookView, error) {
	if _, err := s.Categories.GetCategory(ctx, categoryID); err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	books, err := s.Books.ListBooksByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list books by category: %w", err)
	}

	return s.toViews(ctx, books)
}

// UpdateBook applies the non-nil fields of update to an existing book.
// Requires the write capability.
func (s *CatalogService) UpdateBook(
	ctx context.Context,
	caller domain.Caller,
	id int64,
	update BookUpdate,
) (_ BookView, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("book", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update book failed", "error", err)
		} else {
			log.DebugContext(ctx, "book updated")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return BookView{}, err
	}

	current, err := s.Books.GetBook(ctx, id)
	if err != nil {
		return BookView{}, fmt.Errorf("get book: %w", err)
	}

	if update.Title != nil {
		current.Title = *update.Title
	}

	if update.Author != nil {
		current.Author = *update.Author
	}

	if update.Publisher != nil {
		current.Publisher = *update.Publisher
	}

	if update.ISBN != nil {
		isbn, err := domain.NormalizeISBN(*update.ISBN)
		if err != nil {
			return BookView{}, err
		}

		current.ISBN = isbn
	}

	if update.CategoryID != nil {
		if _, err := s.Categories.GetCategory(ctx, *update.CategoryID); err != nil {
			return BookView{}, fmt.Errorf("get category: %w", err)
		}

		current.CategoryID = *update.CategoryID
	}

	if err := requireFields(map[string]string{
		"title":  current.Title,
		"author": current.Author,
	}); err != nil {
		return BookView{}, err
	}

	if err := s.Books.UpdateBook(ctx, current); err != nil {
		return BookView{}, fmt.Errorf("update book: %w", err)
	}

	return s.toView(ctx, *current)
}

// DeleteBook removes a book from the catalog. Requires the write capability.
// A book with an active loan cannot be deleted; historical loans do not
// block deletion.
func (s *CatalogService) DeleteBook(ctx context.Context, caller domain.Caller, id int64) (err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("book", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete book failed", "error", err)
		} else {
			log.DebugContext(ctx, "book deleted")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return err
	}

	available, err := s.Ledger.IsBookAvailable(ctx, id)
	if err != nil {
		return fmt.Errorf("is book available: %w", err)
	}

	if !available {
		return domain.ErrBookHasActiveLoan
	}

	if err := s.Books.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	return nil
}

// CreateCategory adds a new category. Requires the write capability.
func (s *CatalogService) CreateCategory(
	ctx context.Context,
	caller domain.Caller,
	name, description string,
) (_ *domain.Category, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("category", "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create category failed", "error", err)
		} else {
			log.DebugContext(ctx, "category created")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return nil, err
	}

	if err := requireFields(map[string]string{"name": name}); err != nil {
		return nil, err
	}

	created, err := s.Categories.CreateCategory(ctx, name, description)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return created, nil
}

// GetCategory retrieves a category by ID.
func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	found, err := s.Categories.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	return found, nil
}

// ListCategories returns categories paginated by offset/limit.
func (s *CatalogService) ListCategories(ctx context.Context, offset, limit int) ([]domain.Category, error) {
	categories, err := s.Categories.ListCategories(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}

// ListCategoriesWithBookCounts returns all categories with the number of
// books each one contains.
func (s *CatalogService) ListCategoriesWithBookCounts(ctx context.Context) ([]domain.CategoryBookCount, error) {
	counts, err := s.Categories.ListCategoriesWithBookCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories with book counts: %w", err)
	}

	return counts, nil
}

// UpdateCategory applies the non-nil fields of update to an existing
// category. Requires the write capability.
func (s *CatalogService) UpdateCategory(
	ctx context.Context,
	caller domain.Caller,
	id int64,
	update CategoryUpdate,
) (_ *domain.Category, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("category", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "update category failed", "error", err)
		} else {
			log.DebugContext(ctx, "category updated")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return nil, err
	}

	current, err := s.Categories.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	if update.Name != nil {
		current.Name = *update.Name
	}

	if update.Description != nil {
		current.Description = *update.Description
	}

	if err := requireFields(map[string]string{"name": current.Name}); err != nil {
		return nil, err
	}

	if err := s.Categories.UpdateCategory(ctx, current); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	return current, nil
}

// DeleteCategory removes a category. Requires the write capability.
// A category that still has books cannot be deleted.
func (s *CatalogService) DeleteCategory(ctx context.Context, caller domain.Caller, id int64) (err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("category", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete category failed", "error", err)
		} else {
			log.DebugContext(ctx, "category deleted")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return err
	}

	count, err := s.Books.CountBooksInCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("count books in category: %w", err)
	}

	if count > 0 {
		return domain.ErrCategoryHasBooks
	}

	if err := s.Categories.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	return nil
}

func (s *CatalogService) toView(ctx context.Context, b domain.Book) (BookView, error) {
	cat, err := s.Categories.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return BookView{}, fmt.Errorf("get category: %w", err)
	}

	available, err := s.Ledger.IsBookAvailable(ctx, b.ID)
	if err != nil {
		return BookView{}, fmt.Errorf("is book available: %w", err)
	}

	return BookView{Book: b, Category: *cat, Available: available}, nil
}

func (s *CatalogService) toViews(ctx context.Context, books []domain.Book) ([]BookView, error) {
	views := make([]BookView, 0, len(books))

	for _, b := range books {
		view, err := s.toView(ctx, b)
		if err != nil {
			return nil, err
		}

		views = append(views, view)
	}

	return views, nil
}

func requireFields(fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s", domain.ErrEmptyField, name)
		}
	}

	return nil
}
