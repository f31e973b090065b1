package loan

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

// SQLiteLoanRepository implements Repository on the shared SQLite handle.
type SQLiteLoanRepository struct {
	db  *sqlitedb.DB
	log logging.Logger
}

var _ Repository = (*SQLiteLoanRepository)(nil)

// NewSQLiteLoanRepository creates a new SQLiteLoanRepository using the shared
// database handle.
func NewSQLiteLoanRepository(db *sqlitedb.DB) *SQLiteLoanRepository {
	return &SQLiteLoanRepository{
		db:  db,
		log: logging.GetLogger("repo.loan.sqlite_loan_repository"),
	}
}

// InsertActiveLoan implements Repository.InsertActiveLoan using SQLite.
// The availability check and the insert are a single conditional statement
// executed under the write lock; the partial unique index over active loans
// backstops the invariant at commit.
func (r *SQLiteLoanRepository) InsertActiveLoan(
	ctx context.Context,
	bookID, userID, loanedAt int64,
) (*domain.Loan, error) {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loans (book_id, user_id, loaned_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM loans WHERE book_id = ? AND returned_at IS NULL
		)`,
		bookID, userID, loanedAt, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", sqlitedb.ConstraintErr(err, domain.ErrBookUnavailable))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return nil, domain.ErrBookUnavailable
	}

	loan := domain.Loan{
		BookID:   bookID,
		UserID:   userID,
		LoanedAt: loanedAt,
	}

	if loan.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &loan, nil
}

// GetLoan implements Repository.GetLoan using SQLite.
func (r *SQLiteLoanRepository) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	var loan domain.Loan

	err := r.db.GetContext(ctx, &loan,
		"SELECT id, book_id, user_id, loaned_at, returned_at FROM loans WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrLoanNotFound, err)
		}

		return nil, fmt.Errorf("query loan: %w", err)
	}

	return &loan, nil
}

// MarkReturned implements Repository.MarkReturned using SQLite.
// The activity check and the update are a single conditional statement, so
// two concurrent returns of the same loan can never both succeed.
func (r *SQLiteLoanRepository) MarkReturned(ctx context.Context, id, returnedAt int64) (bool, error) {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx,
		"UPDATE loans SET returned_at = ? WHERE id = ? AND returned_at IS NULL",
		returnedAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("update loan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

// loanDetailRow is the flattened result of a loan joined with its book and user.
type loanDetailRow struct {
	domain.Loan

	BookTitle      string `db:"book_title"`
	BookAuthor     string `db:"book_author"`
	BookISBN       string `db:"book_isbn"`
	BookPublisher  string `db:"book_publisher"`
	BookCategoryID int64  `db:"book_category_id"`

	UserName      string      `db:"user_name"`
	UserEmail     string      `db:"user_email"`
	UserRole      domain.Role `db:"user_role"`
	UserCreatedAt int64       `db:"user_created_at"`
}

func (row loanDetailRow) toDetail() domain.LoanDetail {
	return domain.LoanDetail{
		Loan: row.Loan,
		Book: domain.Book{
			ID:         row.Loan.BookID,
			Title:      row.BookTitle,
			Author:     row.BookAuthor,
			ISBN:       row.BookISBN,
			Publisher:  row.BookPublisher,
			CategoryID: row.BookCategoryID,
		},
		User: domain.User{
			ID:        row.Loan.UserID,
			Name:      row.UserName,
			Email:     row.UserEmail,
			Role:      row.UserRole,
			CreatedAt: row.UserCreatedAt,
		},
	}
}

func detailQuery(conditions ...exp.Expression) *goqu.SelectDataset {
	return dialect.
		From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("l.book_id")})).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("l.user_id")})).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.book_id").As("book_id"),
			goqu.I("l.user_id").As("user_id"),
			goqu.I("l.loaned_at").As("loaned_at"),
			goqu.I("l.returned_at").As("returned_at"),
			goqu.I("b.title").As("book_title"),
			goqu.I("b.author").As("book_author"),
			goqu.I("b.isbn").As("book_isbn"),
			goqu.I("b.publisher").As("book_publisher"),
			goqu.I("b.category_id").As("book_category_id"),
			goqu.I("u.name").As("user_name"),
			goqu.I("u.email").As("user_email"),
			goqu.I("u.role").As("user_role"),
			goqu.I("u.created_at").As("user_created_at"),
		).
		Where(conditions...)
}

func (r *SQLiteLoanRepository) selectDetails(
	ctx context.Context,
	dataset *goqu.SelectDataset,
) ([]domain.LoanDetail, error) {
	query, args, err := dataset.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loans query: %w", err)
	}

	rows := []loanDetailRow{}

	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}

	details := make([]domain.LoanDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.toDetail())
	}

	return details, nil
}

// ListActiveLoansByUser implements Repository.ListActiveLoansByUser using SQLite.
func (r *SQLiteLoanRepository) ListActiveLoansByUser(
	ctx context.Context,
	userID int64,
) ([]domain.LoanDetail, error) {
	return r.selectDetails(ctx, detailQuery(
		goqu.I("l.user_id").Eq(userID),
		goqu.I("l.returned_at").IsNull(),
	).Order(goqu.I("l.id").Asc()))
}

// ListLoansByUser implements Repository.ListLoansByUser using SQLite.
func (r *SQLiteLoanRepository) ListLoansByUser(
	ctx context.Context,
	userID int64,
	offset, limit int,
) ([]domain.LoanDetail, error) {
	return r.selectDetails(ctx, detailQuery(
		goqu.I("l.user_id").Eq(userID),
	).
		Order(goqu.I("l.loaned_at").Desc(), goqu.I("l.id").Desc()).
		Offset(uint(offset)).
		Limit(uint(limit)))
}

// ListActiveLoans implements Repository.ListActiveLoans using SQLite.
func (r *SQLiteLoanRepository) ListActiveLoans(ctx context.Context) ([]domain.LoanDetail, error) {
	return r.selectDetails(ctx, detailQuery(
		goqu.I("l.returned_at").IsNull(),
	).Order(goqu.I("l.id").Asc()))
}

// HasActiveLoanForBook implements Repository.HasActiveLoanForBook using SQLite.
func (r *SQLiteLoanRepository) HasActiveLoanForBook(ctx context.Context, bookID int64) (bool, error) {
	var exists bool

	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM loans WHERE book_id = ? AND returned_at IS NULL)", bookID)
	if err != nil {
		return false, fmt.Errorf("query active loan: %w", err)
	}

	return exists, nil
}

// DeleteLoan implements Repository.DeleteLoan using SQLite.
func (r *SQLiteLoanRepository) DeleteLoan(ctx context.Context, id int64) error {
	defer r.db.Write()()

	res, err := r.db.ExecContext(ctx, "DELETE FROM loans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return domain.ErrLoanNotFound
	}

	return nil
}

// CountActiveLoans implements Repository.CountActiveLoans using SQLite.
func (r *SQLiteLoanRepository) CountActiveLoans(ctx context.Context) (int64, error) {
	var count int64

	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM loans WHERE returned_at IS NULL")
	if err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}

	return count, nil
}

// MostLoanedCategory implements Repository.MostLoanedCategory using SQLite.
// Ties break on the lower category ID, which keeps the result stable.
func (r *SQLiteLoanRepository) MostLoanedCategory(ctx context.Context) (*domain.PopularCategory, error) {
	query, args, err := dialect.
		From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("l.book_id")})).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.Ex{"c.id": goqu.I("b.category_id")})).
		Select(
			goqu.I("c.name").As("name"),
			goqu.COUNT(goqu.I("l.id")).As("loans"),
		).
		GroupBy(goqu.I("c.id"), goqu.I("c.name")).
		Order(goqu.COUNT(goqu.I("l.id")).Desc(), goqu.I("c.id").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build popular category query: %w", err)
	}

	var popular domain.PopularCategory

	if err := r.db.GetContext(ctx, &popular, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("query popular category: %w", err)
	}

	return &popular, nil
}
