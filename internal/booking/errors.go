// Package booking implements the booking core: the availability checker,
// the reservation and payment state machines, and the orchestrator that
// composes them into atomic operations.
package booking

import "errors"

// Error kinds returned by the booking core.  Callers classify with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrNotFound: a referenced space, user, reservation or payment is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the slot is already held or the payment already settled.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized: the actor does not own the resource for this action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState: the transition is not defined from the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput: the request is malformed (amount, method, ...).
	ErrInvalidInput = errors.New("invalid input")
)
