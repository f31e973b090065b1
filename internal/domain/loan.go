package domain

import "errors"

var (
	// ErrLoanNotFound is returned when looking up a non-existent loan.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrLoanAlreadyReturned is returned when trying to return a loan that has
	// already been returned. Double return is an error, never a no-op.
	ErrLoanAlreadyReturned = errors.New("loan already returned")
	// ErrBookUnavailable is returned when trying to loan a book that currently
	// has an active loan.
	ErrBookUnavailable = errors.New("book unavailable")
)

// Loan records a book borrowed by a user over an interval. A loan is created
// active, mutated exactly once by the return operation, and never un-returned.
type Loan struct {
	ID         int64  `db:"id"`          // Unique identifier
	BookID     int64  `db:"book_id"`     // Borrowed book
	UserID     int64  `db:"user_id"`     // Borrowing user
	LoanedAt   int64  `db:"loaned_at"`   // Unix timestamp, set at creation, immutable
	ReturnedAt *int64 `db:"returned_at"` // Unix timestamp, nil while the loan is active
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// LoanDetail is a loan with its book and user resolved for display.
type LoanDetail struct {
	Loan
	Book Book
	User User
}
