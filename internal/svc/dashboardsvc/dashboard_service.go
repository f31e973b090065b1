// Package dashboardsvc derives read-only statistics from the catalog, the
// user registry and the loan ledger. Nothing is cached; every call computes
// from the authoritative stores.
package dashboardsvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/bookcase/internal/domain"
	context_ "github.com/mkrupp/bookcase/internal/infra/context"
	"github.com/mkrupp/bookcase/internal/infra/logging"
)

// BookCounter counts catalogued books.
type BookCounter interface {
	CountBooks(ctx context.Context) (int64, error)
}

// UserCounter counts registered users.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// LedgerStats is the aggregate view of the loan ledger.
type LedgerStats interface {
	CountActiveLoans(ctx context.Context) (int64, error)
	MostLoanedCategory(ctx context.Context) (*domain.PopularCategory, error)
}

// DashboardService computes library-wide statistics on demand.
type DashboardService struct {
	Books BookCounter
	Users UserCounter
	Loans LedgerStats
	Log   logging.Logger
}

// NewDashboardService creates a new DashboardService over the given stores.
func NewDashboardService(books BookCounter, users UserCounter, loans LedgerStats) *DashboardService {
	return &DashboardService{
		Books: books,
		Users: users,
		Loans: loans,
		Log:   logging.GetLogger("svc.dashboardsvc.dashboard_service"),
	}
}

// Stats returns the current dashboard snapshot.
// Requires the read-all capability.
func (s *DashboardService) Stats(ctx context.Context, caller domain.Caller) (_ domain.DashboardStats, err error) {
	ctx = context_.WithCaller(ctx, caller)

	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "dashboard stats failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "dashboard stats computed")
		}
	}()

	if err := caller.Authorize(domain.CapReadAll); err != nil {
		return domain.DashboardStats{}, err
	}

	totalBooks, err := s.Books.CountBooks(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count books: %w", err)
	}

	activeLoans, err := s.Loans.CountActiveLoans(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count active loans: %w", err)
	}

	totalUsers, err := s.Users.CountUsers(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count users: %w", err)
	}

	popular := domain.PopularCategory{Name: domain.NoPopularCategory, Loans: 0}

	if mostLoaned, err := s.Loans.MostLoanedCategory(ctx); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("most loaned category: %w", err)
	} else if mostLoaned != nil {
		popular = *mostLoaned
	}

	return domain.DashboardStats{
		TotalBooks:          totalBooks,
		ActiveLoans:         activeLoans,
		TotalUsers:          totalUsers,
		AvailableBooks:      totalBooks - activeLoans,
		OccupancyPercentage: domain.Occupancy(activeLoans, totalBooks),
		MostPopularCategory: popular,
	}, nil
}
