package domain

import "errors"

// ErrEmptyField is returned when a required string field is empty or blank.
// Callers wrap it with the field name.
var ErrEmptyField = errors.New("required field is empty")

// ErrorKind classifies a domain error for the caller-facing boundary.
// Anything not recognized is KindInternal, the only kind eligible for retry.
type ErrorKind int

const (
	// KindInternal is an unexpected persistence or infrastructure failure.
	KindInternal ErrorKind = iota
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
	// KindConflict means the operation would violate an invariant or a
	// uniqueness constraint.
	KindConflict
	// KindForbidden means the caller lacks the capability or ownership
	// required for the operation.
	KindForbidden
	// KindInvalid means the input was malformed.
	KindInvalid
)

// String returns the kind name for logs and error payloads.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Kinds are matched in order. Forbidden wins over the rest so that a joined
// error like invalid-credentials+user-not-found never leaks account existence.
//
//nolint:gochecknoglobals
var errorKinds = []struct {
	kind      ErrorKind
	sentinels []error
}{
	{KindForbidden, []error{
		ErrForbidden,
		ErrInvalidCredentials,
		ErrNoAuthToken,
		ErrInvalidAuthToken,
	}},
	{KindConflict, []error{
		ErrBookUnavailable,
		ErrLoanAlreadyReturned,
		ErrBookHasActiveLoan,
		ErrCategoryHasBooks,
		ErrEmailTaken,
		ErrISBNTaken,
		ErrCategoryNameTaken,
	}},
	{KindNotFound, []error{
		ErrUserNotFound,
		ErrBookNotFound,
		ErrCategoryNotFound,
		ErrLoanNotFound,
	}},
	{KindInvalid, []error{
		ErrEmptyField,
		ErrInvalidISBN,
		ErrPasswordTooShort,
		ErrInvalidRole,
	}},
}

// KindOf classifies err into the error taxonomy by matching the domain
// sentinels in its chain.
func KindOf(err error) ErrorKind {
	for _, entry := range errorKinds {
		for _, sentinel := range entry.sentinels {
			if errors.Is(err, sentinel) {
				return entry.kind
			}
		}
	}

	return KindInternal
}
