package loan

import (
	"context"

	"github.com/mkrupp/bookcase/internal/domain"
)

// Repository defines the interface for loan ledger persistence. It is the
// single authoritative source for loan state and book availability.
type Repository interface {
	// InsertActiveLoan creates a new active loan for the book, if and only if
	// the book has no active loan. The availability check and the insert are
	// evaluated as one atomic statement with respect to concurrent inserts
	// for the same book.
	// Returns domain.ErrBookUnavailable when the book is already loaned out.
	InsertActiveLoan(ctx context.Context, bookID, userID, loanedAt int64) (*domain.Loan, error)

	// GetLoan retrieves a loan by ID.
	// Returns domain.ErrLoanNotFound if no such loan exists.
	GetLoan(ctx context.Context, id int64) (*domain.Loan, error)

	// MarkReturned sets the return timestamp of an active loan. Reports false
	// without error when the loan was not active, so that a concurrent double
	// return can be rejected by the caller.
	MarkReturned(ctx context.Context, id, returnedAt int64) (bool, error)

	// ListActiveLoansByUser returns the user's active loans with book and
	// user resolved. Order is stable within a single read.
	ListActiveLoansByUser(ctx context.Context, userID int64) ([]domain.LoanDetail, error)

	// ListLoansByUser returns all of the user's loans, active and returned,
	// ordered by loan timestamp descending, paginated by offset/limit.
	ListLoansByUser(ctx context.Context, userID int64, offset, limit int) ([]domain.LoanDetail, error)

	// ListActiveLoans returns every active loan in the system.
	ListActiveLoans(ctx context.Context) ([]domain.LoanDetail, error)

	// HasActiveLoanForBook reports whether the book currently has an active
	// loan, read from the same table the insert path consults.
	HasActiveLoanForBook(ctx context.Context, bookID int64) (bool, error)

	// DeleteLoan hard-deletes a loan, bypassing all invariant checks.
	// Returns domain.ErrLoanNotFound if absent.
	DeleteLoan(ctx context.Context, id int64) error

	// CountActiveLoans returns the number of active loans in the system.
	CountActiveLoans(ctx context.Context) (int64, error)

	// MostLoanedCategory returns the category with the greatest number of
	// loans, active and historical. Returns nil when no loans exist.
	MostLoanedCategory(ctx context.Context) (*domain.PopularCategory, error)
}
