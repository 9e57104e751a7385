package service

import "errors"

// Recoverable error kinds surfaced to callers. Operations wrap these
// with a human-readable message via fmt.Errorf("%w: ..."); callers
// branch with errors.Is. Anything else is an internal failure.
var (
	// ErrNotFound covers missing records and records owned by another
	// user; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrBusinessRule covers domain rule violations: duplicate products
	// in one order, insufficient stock, illegal status transitions,
	// deleting a non-pending order, uniqueness conflicts.
	ErrBusinessRule = errors.New("business rule violation")

	// ErrUnauthorized covers failed credential checks
	ErrUnauthorized = errors.New("unauthorized")
)
