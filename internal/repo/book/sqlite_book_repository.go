package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
)

//nolint:gochecknoglobals
var dialect = goqu.Dialect("sqlite3")

const selectBookColumns = "id, title, author, isbn, publisher, category_id"

// SQLiteBookRepository implements Repository on the shared SQLite handle.
type SQLiteBookRepository struct {
	db  *sqlitedb.DB
	log logging.Logger
}

var _ Repository = (*SQLiteBookRepository)(nil)

// NewSQLiteBookRepository creates a new SQLiteBookRepository using the shared
// database handle.
func NewSQLiteBookRepository(db *sqlitedb.DB) *SQLiteBookRepository {
	return &SQLiteBookRepository{
		db:  db,
		log: logging.GetLogger("repo.book.sqlite_book_repository"),
	}
}

// CreateBook implements Repository.CreateBook using SQLite.
func (r *SQLiteBookRepository) CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	defer r.db.Write()()

	created := *book

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO books (title, author, isbn, publisher, category_id) VALUES (?, ?, ?, ?, ?)",
		created.Title, created.Author, created.ISBN, created.Publisher, created.CategoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", sqlitedb.ConstraintErr(err, domain.ErrISBNTaken))
	}

	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &created, nil
}

// GetBook implements Repository.GetBook using SQLite.
func (r *SQLiteBookRepository) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var book domain.Book

	err := r.db.GetContext(ctx, &book,
		"SELECT "+selectBookColumns+" FROM books WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrBookNotFound, err)
		}

		return nil, fmt.Errorf("query book: %w", err)
	}

	return &book, nil
}

// BookExists implements Repository.BookExists using SQLite.
func (r *SQLiteBookRepository) BookExists(ctx context.Context, id int64) (bool, error) {
	var exists bool

	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM books WHERE id = ?)", id)
	if err != nil {
		return false, fmt.Errorf("query book exists: %w", err)
	}

	return exists, nil
}

// ListBooks implements Repository.ListBooks using SQLite.
func (r *SQLiteBookRepository) ListBooks(ctx context.Context, offset, limit int) ([]domain.Book, error) {
	books := []domain.Book{}

	err := r.db.SelectContext(ctx, &books,
		"SELECT "+selectBookColumns+" FROM books ORDER BY id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}

	return books, nil
}

// ListAvailableBooks implements Repository.ListAvailableBooks using SQLite.
// A book is available when the loan ledger has no active loan for it.
func (r *SQLiteBookRepository) ListAvailableBooks(
	ctx context.Context,
	offset, limit int,
) ([]domain.Book, error) {
	books := []domain.Book{}

	err := r.db.SelectContext(ctx, &books, `
		SELECT `+selectBookColumns+` FROM books
		WHERE NOT EXISTS (
			SELECT 1 FROM loans WHERE loans.book_id = books.id AND loans.returned_at IS NULL
		)
		ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query available books: %w", err)
	}

	return books, nil
}

// ListBooksByCategory implements Repository.ListBooksByCategory using SQLite.
func (r *SQLiteBookRepository) ListBooksByCategory(
	ctx context.Context,
	categoryID int64,
) ([]domain.Book, error) {
	books := []domain.Book{}

	err := r.db.SelectContext(ctx, &books,
		"SELECT "+selectBookColumns+" FROM books WHERE category_id = ? ORDER BY id", categoryID)
	if err != nil {
		return nil, fmt.Errorf("query books by category: %w", err)
	}

	return books, nil
}

// SearchBooks implements Repository.SearchBooks using SQLite.
func (r *SQLiteBookRepository) SearchBooks(
	ctx context.Context,
	query string,
	field SearchField,
) ([]domain.Book, error) {
	pattern := "%" + query + "%"

	var condition exp.Expression

	switch field {
	case SearchTitle:
		condition = goqu.I("b.title").Like(pattern)
	case SearchAuthor:
		condition = goqu.I("b.author").Like(pattern)
	case SearchCategory:
		condition = goqu.I("c.name").Like(pattern)
	case SearchAll:
		fallthrough
	default:
		condition = goqu.Or(
			goqu.I("b.title").Like(pattern),
			goqu.I("b.author").Like(pattern),
			goqu.I("c.name").Like(pattern),
		)
	}

	sqlQuery, args, err := dialect.
		From(goqu.T("books").As("b")).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.Ex{"c.id": goqu.I("b.category_id")})).
		Select(
			goqu.I("b.id").As("id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.I("b.isbn").As("isbn"),
			goqu.I("b.publisher").As("publisher"),
			goqu.I("b.category_id").As("category_id"),
		).
		Where(condition).
		Order(goqu.I("b.id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	books := []domain.Book{}

	if err := r.db.SelectContext(ctx, &books, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("query book search: %w", err)
	}

	return books, nil
}

// UpdateBook implements Repository.UpdateBook using SQLite.
func (r *SQLiteBookRepository) UpdateBook(ctx context.Context, book *domain.Book) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx,
		"UPDATE books SET title = ?, author = ?, isbn = ?, publisher = ?, category_id = ? WHERE id = ?",
		book.Title, book.Author, book.ISBN, book.Publisher, book.CategoryID, book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", sqlitedb.ConstraintErr(err, domain.ErrISBNTaken))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

// DeleteBook implements Repository.DeleteBook using SQLite.
func (r *SQLiteBookRepository) DeleteBook(ctx context.Context, id int64) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

// CountBooks implements Repository.CountBooks using SQLite.
func (r *SQLiteBookRepository) CountBooks(ctx context.Context) (int64, error) {
	var count int64

	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM books"); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}

	return count, nil
}

// CountBooksInCategory implements Repository.CountBooksInCategory using SQLite.
func (r *SQLiteBookRepository) CountBooksInCategory(ctx context.Context, categoryID int64) (int64, error) {
	var count int64

	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM books WHERE category_id = ?", categoryID)
	if err != nil {
		return 0, fmt.Errorf("count books in category: %w", err)
	}

	return count, nil
}
