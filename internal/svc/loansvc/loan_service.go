// Package loansvc owns the loan lifecycle: creation, return, activity
// queries and the one-active-loan-per-book invariant.
package loansvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/bookcase/internal/domain"
	context_ "github.com/mkrupp/bookcase/internal/infra/context"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/loan"
)

// CatalogStore is the read-only view of the book catalog the ledger consults.
// The ledger never mutates the catalog.
type CatalogStore interface {
	// BookExists reports whether a book with the given ID exists.
	BookExists(ctx context.Context, id int64) (bool, error)

	// GetBook retrieves a book by ID.
	// Returns domain.ErrBookNotFound if no such book exists.
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
}

// CredentialStore is the read-only view of registered users the ledger
// consults. The ledger never mutates user accounts.
type CredentialStore interface {
	// UserExists reports whether a user with the given ID exists.
	UserExists(ctx context.Context, id int64) (bool, error)

	// GetUser retrieves a user by ID.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// LoanService is the loan ledger. It owns the authoritative state of every
// loan and is the only writer of the loans table.
type LoanService struct {
	Loans   loan.Repository
	Catalog CatalogStore
	Users   CredentialStore
	Log     logging.Logger
	Now     func() time.Time
}

// NewLoanService creates a new LoanService on top of the loan repository and
// the catalog/credential collaborators.
func NewLoanService(loans loan.Repository, catalog CatalogStore, users CredentialStore) *LoanService {
	return &LoanService{
		Loans:   loans,
		Catalog: catalog,
		Users:   users,
		Log:     logging.GetLogger("svc.loansvc.loan_service"),
		Now:     time.Now,
	}
}

// CreateLoan loans a book to a user. Callers loan for themselves; loaning on
// behalf of another user requires the write capability. The book-exists,
// user-exists and availability checks commit atomically with the insert.
// Returns domain.ErrBookNotFound, domain.ErrUserNotFound,
// domain.ErrBookUnavailable or domain.ErrForbidden.
func (s *LoanService) CreateLoan(
	ctx context.Context,
	caller domain.Caller,
	bookID, userID int64,
) (_ domain.LoanDetail, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("loan", "book_id", bookID, "user_id", userID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create loan failed", "error", err)
		} else {
			log.DebugContext(ctx, "loan created")
		}
	}()

	if err := caller.Authorize(domain.CapReadOwn); err != nil {
		return domain.LoanDetail{}, err
	}

	if userID != caller.UserID {
		if err := caller.Authorize(domain.CapWrite); err != nil {
			return domain.LoanDetail{}, err
		}
	}

	book, err := s.Catalog.GetBook(ctx, bookID)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("get book: %w", err)
	}

	user, err := s.Users.GetUser(ctx, userID)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("get user: %w", err)
	}

	created, err := s.Loans.InsertActiveLoan(ctx, bookID, userID, s.Now().Unix())
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("insert loan: %w", err)
	}

	return domain.LoanDetail{Loan: *created, Book: *book, User: *user}, nil
}

// ReturnLoan records the return of an active loan. Non-elevated callers may
// only return their own loans; the elevated role may return any loan.
// Returning an already-returned loan is rejected with
// domain.ErrLoanAlreadyReturned, never silently accepted.
func (s *LoanService) ReturnLoan(
	ctx context.Context,
	caller domain.Caller,
	loanID int64,
) (_ domain.LoanDetail, err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("loan", "id", loanID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "return loan failed", "error", err)
		} else {
			log.DebugContext(ctx, "loan returned")
		}
	}()

	if err := caller.Authorize(domain.CapReadOwn); err != nil {
		return domain.LoanDetail{}, err
	}

	current, err := s.Loans.GetLoan(ctx, loanID)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("get loan: %w", err)
	}

	if !current.IsActive() {
		return domain.LoanDetail{}, domain.ErrLoanAlreadyReturned
	}

	if current.UserID != caller.UserID {
		if err := caller.Authorize(domain.CapWrite); err != nil {
			return domain.LoanDetail{}, err
		}
	}

	returnedAt := s.Now().Unix()

	returned, err := s.Loans.MarkReturned(ctx, loanID, returnedAt)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("mark returned: %w", err)
	}

	if !returned {
		// Lost the race against a concurrent return.
		return domain.LoanDetail{}, domain.ErrLoanAlreadyReturned
	}

	current.ReturnedAt = &returnedAt

	book, err := s.Catalog.GetBook(ctx, current.BookID)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("get book: %w", err)
	}

	user, err := s.Users.GetUser(ctx, current.UserID)
	if err != nil {
		return domain.LoanDetail{}, fmt.Errorf("get user: %w", err)
	}

	return domain.LoanDetail{Loan: *current, Book: *book, User: *user}, nil
}

// ActiveLoansForUser returns the user's active loans. Reading another user's
// loans requires the read-all capability.
func (s *LoanService) ActiveLoansForUser(
	ctx context.Context,
	caller domain.Caller,
	userID int64,
) ([]domain.LoanDetail, error) {
	if err := s.authorizeUserScope(caller, userID); err != nil {
		return nil, err
	}

	details, err := s.Loans.ListActiveLoansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	return details, nil
}

// LoanHistoryForUser returns all of the user's loans ordered by loan
// timestamp descending, paginated by offset/limit. Reading another user's
// history requires the read-all capability.
func (s *LoanService) LoanHistoryForUser(
	ctx context.Context,
	caller domain.Caller,
	userID int64,
	offset, limit int,
) ([]domain.LoanDetail, error) {
	if err := s.authorizeUserScope(caller, userID); err != nil {
		return nil, err
	}

	details, err := s.Loans.ListLoansByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list loan history: %w", err)
	}

	return details, nil
}

// AllActiveLoans returns every active loan in the system.
// Requires the read-all capability.
func (s *LoanService) AllActiveLoans(ctx context.Context, caller domain.Caller) ([]domain.LoanDetail, error) {
	if err := caller.Authorize(domain.CapReadAll); err != nil {
		return nil, err
	}

	details, err := s.Loans.ListActiveLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	return details, nil
}

// IsBookAvailable reports whether the book has no active loan, read from the
// same authoritative state CreateLoan consults.
// Returns domain.ErrBookNotFound when the book does not exist.
func (s *LoanService) IsBookAvailable(ctx context.Context, bookID int64) (bool, error) {
	exists, err := s.Catalog.BookExists(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("book exists: %w", err)
	}

	if !exists {
		return false, domain.ErrBookNotFound
	}

	loaned, err := s.Loans.HasActiveLoanForBook(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("has active loan: %w", err)
	}

	return !loaned, nil
}

// DeleteLoan hard-deletes a loan, bypassing the return lifecycle. This is an
// administrative escape hatch and requires the write capability.
func (s *LoanService) DeleteLoan(ctx context.Context, caller domain.Caller, loanID int64) (err error) {
	ctx = context_.WithCaller(ctx, caller)
	log := s.Log.With(logging.Group("loan", "id", loanID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete loan failed", "error", err)
		} else {
			log.DebugContext(ctx, "loan deleted")
		}
	}()

	if err := caller.Authorize(domain.CapWrite); err != nil {
		return err
	}

	if err := s.Loans.DeleteLoan(ctx, loanID); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}

	return nil
}

func (s *LoanService) authorizeUserScope(caller domain.Caller, userID int64) error {
	if userID == caller.UserID {
		return caller.Authorize(domain.CapReadOwn)
	}

	return caller.Authorize(domain.CapReadAll)
}
