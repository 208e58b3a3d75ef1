// Package scheduler implements the shift lifecycle and the volunteer
// commitment state machine.  It owns every cross-entity invariant of
// the system: role-gated status transitions, spot-count bookkeeping,
// overlap detection, the bounded cancellation window and credit
// accrual.  Persistence, transport and notification delivery are
// consumed through the interfaces defined in stores.go.
package scheduler

import "errors"

// Sentinel errors form the failure taxonomy of every engine operation.
// Store implementations return (or wrap) the same sentinels so that
// callers can classify failures with errors.Is regardless of the
// backing store.  Handlers translate them to HTTP statuses:
// ErrForbidden -> 403, ErrNotFound -> 404, everything else below -> 400.
var (
	// ErrValidation flags malformed input, caught before any state
	// mutation (end before start, zero spots, bad date format).
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the caller's role lacks permission
	// for the action, or when a volunteer touches a commitment owned
	// by someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced shift or commitment
	// does not exist (or has been cancelled and removed).
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an action is not valid for
	// the entity's current status, e.g. publishing a draft shift or
	// approving an already resolved commitment.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicate is returned when a volunteer already holds a
	// commitment for the shift; a prior rejection blocks re-signup
	// permanently.
	ErrDuplicate = errors.New("duplicate commitment")

	// ErrCapacity is returned when a spot decrement would take the
	// counter negative: signup against a full shift, or an approval
	// that lost the race for the last spot.
	ErrCapacity = errors.New("no spots available")

	// ErrWindowExpired is returned when a volunteer tries to cancel an
	// approved commitment after can_cancel_until has passed.
	ErrWindowExpired = errors.New("cancellation window expired")
)
