package domain

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the authenticated caller lacks the capability
// or ownership required for an operation.
var ErrForbidden = errors.New("forbidden")

// Capability is a permission bit granted to a role. Operations are gated on
// capabilities rather than on inline role comparisons.
type Capability uint8

const (
	// CapReadOwn allows reading records owned by the caller.
	CapReadOwn Capability = 1 << iota
	// CapReadAll allows reading records of any user.
	CapReadAll
	// CapWrite allows mutating catalog data, user accounts and loans of any user.
	CapWrite
)

// String returns the capability name for error messages and logs.
func (c Capability) String() string {
	switch c {
	case CapReadOwn:
		return "read-own"
	case CapReadAll:
		return "read-all"
	case CapWrite:
		return "write"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Capabilities returns the capability set granted to the role.
func (r Role) Capabilities() Capability {
	switch r {
	case RoleLibrarian:
		return CapReadOwn | CapReadAll | CapWrite
	case RoleClient:
		return CapReadOwn
	default:
		return 0
	}
}

// Caller identifies the authenticated user an operation is performed for.
type Caller struct {
	UserID int64
	Role   Role
}

// Can reports whether the caller's role grants the capability.
func (c Caller) Can(cap Capability) bool {
	return c.Role.Capabilities()&cap == cap
}

// Authorize is the single authorization gate evaluated before each operation.
// Returns ErrForbidden naming the missing capability, nil otherwise.
func (c Caller) Authorize(cap Capability) error {
	if !c.Can(cap) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, c.Role, cap)
	}

	return nil
}
