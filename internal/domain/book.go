package domain

import (
	"errors"
	"strings"
)

var (
	// ErrBookNotFound is returned when looking up a non-existent book.
	ErrBookNotFound = errors.New("book not found")
	// ErrISBNTaken is returned when trying to create or update a book with an ISBN
	// that is already catalogued.
	ErrISBNTaken = errors.New("isbn already catalogued")
	// ErrInvalidISBN is returned when an ISBN does not normalize to 10 or 13 characters.
	ErrInvalidISBN = errors.New("isbn must have 10 or 13 characters")
	// ErrBookHasActiveLoan is returned when trying to delete a book that is
	// currently loaned out.
	ErrBookHasActiveLoan = errors.New("book has an active loan")
)

// Book represents a catalogued book. Availability is not stored on the book;
// it is derived from the loan ledger.
type Book struct {
	ID         int64  `db:"id"`          // Unique identifier
	Title      string `db:"title"`       // Book title
	Author     string `db:"author"`      // Author name
	ISBN       string `db:"isbn"`        // Normalized ISBN, unique
	Publisher  string `db:"publisher"`   // Publisher name, may be empty
	CategoryID int64  `db:"category_id"` // Owning category
}

// NormalizeISBN strips hyphens and spaces from an ISBN and validates that the
// result has 10 or 13 characters. Returns the normalized ISBN or ErrInvalidISBN.
func NormalizeISBN(isbn string) (string, error) {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")

	if len(normalized) != 10 && len(normalized) != 13 {
		return "", ErrInvalidISBN
	}

	return normalized, nil
}
