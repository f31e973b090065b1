package loan_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/repo/book"
	"github.com/mkrupp/bookcase/internal/repo/category"
	"github.com/mkrupp/bookcase/internal/repo/loan"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
	"github.com/mkrupp/bookcase/internal/repo/user"
)

type fixture struct {
	loans      *loan.SQLiteLoanRepository
	books      *book.SQLiteBookRepository
	users      *user.SQLiteUserRepository
	categories *category.SQLiteCategoryRepository

	novels *domain.Category
	alice  *domain.User
	bob    *domain.User
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.Config{
		DatabasePath: filepath.Join(t.TempDir(), "loans.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fix := &fixture{
		loans:      loan.NewSQLiteLoanRepository(db),
		books:      book.NewSQLiteBookRepository(db),
		users:      user.NewSQLiteUserRepository(db),
		categories: category.NewSQLiteCategoryRepository(db),
	}

	ctx := context.Background()

	fix.novels, err = fix.categories.CreateCategory(ctx, "Novels", "")
	require.NoError(t, err)

	fix.alice, err = fix.users.CreateUser(ctx, "Alice", "alice@example.com", []byte("x"), domain.RoleClient)
	require.NoError(t, err)

	fix.bob, err = fix.users.CreateUser(ctx, "Bob", "bob@example.com", []byte("x"), domain.RoleClient)
	require.NoError(t, err)

	return fix
}

func (fix *fixture) addBook(t *testing.T, title, isbn string) *domain.Book {
	t.Helper()

	created, err := fix.books.CreateBook(context.Background(), &domain.Book{
		Title:      title,
		Author:     "Some Author",
		ISBN:       isbn,
		CategoryID: fix.novels.ID,
	})
	require.NoError(t, err)

	return created
}

func TestSQLiteLoanRepository_InsertActiveLoan(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()
	b := fix.addBook(t, "Dune", "9780441172719")

	created, err := fix.loans.InsertActiveLoan(ctx, b.ID, fix.alice.ID, 1000)
	require.NoError(t, err)
	assert.True(t, created.IsActive())
	assert.Equal(t, int64(1000), created.LoanedAt)

	// Same book again while the first loan is active.
	_, err = fix.loans.InsertActiveLoan(ctx, b.ID, fix.bob.ID, 1001)
	require.ErrorIs(t, err, domain.ErrBookUnavailable)

	loaned, err := fix.loans.HasActiveLoanForBook(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, loaned)

	// After a return the book can be loaned again.
	returned, err := fix.loans.MarkReturned(ctx, created.ID, 2000)
	require.NoError(t, err)
	assert.True(t, returned)

	_, err = fix.loans.InsertActiveLoan(ctx, b.ID, fix.bob.ID, 3000)
	require.NoError(t, err)
}

func TestSQLiteLoanRepository_InsertActiveLoan_Concurrent(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()
	b := fix.addBook(t, "Snow Crash", "9780553380958")

	const attempts = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := range attempts {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			_, err := fix.loans.InsertActiveLoan(ctx, b.ID, fix.alice.ID, int64(n))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrBookUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one concurrent loan must win")
	assert.Equal(t, attempts-1, conflicts)

	count, err := fix.loans.CountActiveLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteLoanRepository_MarkReturned(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()
	b := fix.addBook(t, "Hyperion", "9780553283686")

	created, err := fix.loans.InsertActiveLoan(ctx, b.ID, fix.alice.ID, 1000)
	require.NoError(t, err)

	returned, err := fix.loans.MarkReturned(ctx, created.ID, 2000)
	require.NoError(t, err)
	assert.True(t, returned)

	// Second return of the same loan reports false.
	returned, err = fix.loans.MarkReturned(ctx, created.ID, 3000)
	require.NoError(t, err)
	assert.False(t, returned)

	// The first return timestamp stays in place.
	stored, err := fix.loans.GetLoan(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReturnedAt)
	assert.Equal(t, int64(2000), *stored.ReturnedAt)
}

func TestSQLiteLoanRepository_GetLoan_NotFound(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)

	_, err := fix.loans.GetLoan(context.Background(), 4711)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestSQLiteLoanRepository_ListLoansByUser(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()

	first := fix.addBook(t, "Book One", "1111111111")
	second := fix.addBook(t, "Book Two", "2222222222")
	third := fix.addBook(t, "Book Three", "3333333333")

	loan1, err := fix.loans.InsertActiveLoan(ctx, first.ID, fix.alice.ID, 1000)
	require.NoError(t, err)
	_, err = fix.loans.MarkReturned(ctx, loan1.ID, 1500)
	require.NoError(t, err)

	_, err = fix.loans.InsertActiveLoan(ctx, second.ID, fix.alice.ID, 2000)
	require.NoError(t, err)

	_, err = fix.loans.InsertActiveLoan(ctx, third.ID, fix.bob.ID, 3000)
	require.NoError(t, err)

	// History is ordered most recent first and includes returned loans.
	history, err := fix.loans.ListLoansByUser(ctx, fix.alice.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Book Two", history[0].Book.Title)
	assert.Equal(t, "Book One", history[1].Book.Title)
	assert.Equal(t, "Alice", history[0].User.Name)

	// Pagination.
	page, err := fix.loans.ListLoansByUser(ctx, fix.alice.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Book One", page[0].Book.Title)

	// Active loans only.
	active, err := fix.loans.ListActiveLoansByUser(ctx, fix.alice.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Book Two", active[0].Book.Title)

	// All active loans across users.
	allActive, err := fix.loans.ListActiveLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, allActive, 2)
}

func TestSQLiteLoanRepository_DeleteLoan(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()
	b := fix.addBook(t, "Neuromancer", "9780441569595")

	created, err := fix.loans.InsertActiveLoan(ctx, b.ID, fix.alice.ID, 1000)
	require.NoError(t, err)

	require.NoError(t, fix.loans.DeleteLoan(ctx, created.ID))

	_, err = fix.loans.GetLoan(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrLoanNotFound)

	require.ErrorIs(t, fix.loans.DeleteLoan(ctx, created.ID), domain.ErrLoanNotFound)
}

func TestSQLiteLoanRepository_MostLoanedCategory(t *testing.T) {
	t.Parallel()

	fix := setupFixture(t)
	ctx := context.Background()

	// No loans at all.
	popular, err := fix.loans.MostLoanedCategory(ctx)
	require.NoError(t, err)
	assert.Nil(t, popular)

	scifi, err := fix.categories.CreateCategory(ctx, "Science Fiction", "")
	require.NoError(t, err)

	novel := fix.addBook(t, "A Novel", "1111111111")

	scifiBook, err := fix.books.CreateBook(ctx, &domain.Book{
		Title:      "A Spaceship",
		Author:     "Some Author",
		ISBN:       "2222222222",
		CategoryID: scifi.ID,
	})
	require.NoError(t, err)

	// Two loans in Science Fiction (one returned), one in Novels.
	loan1, err := fix.loans.InsertActiveLoan(ctx, scifiBook.ID, fix.alice.ID, 1000)
	require.NoError(t, err)
	_, err = fix.loans.MarkReturned(ctx, loan1.ID, 1500)
	require.NoError(t, err)

	_, err = fix.loans.InsertActiveLoan(ctx, scifiBook.ID, fix.bob.ID, 2000)
	require.NoError(t, err)

	_, err = fix.loans.InsertActiveLoan(ctx, novel.ID, fix.alice.ID, 3000)
	require.NoError(t, err)

	popular, err = fix.loans.MostLoanedCategory(ctx)
	require.NoError(t, err)
	require.NotNil(t, popular)
	assert.Equal(t, "Science Fiction", popular.Name)
	assert.Equal(t, int64(2), popular.Loans)
}
