package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrUnauthorized signals a missing or rejected credential (HTTP 401)
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable signals a peer service that could not be reached (HTTP 503)
	ErrUnavailable = errors.New("unavailable")
	// ErrUnbalanced indicates sum(debits) != sum(credits) for a journal entry
	ErrUnbalanced = errors.New("unbalanced")
	// ErrTooFewLines indicates a journal entry with fewer than two lines
	ErrTooFewLines = errors.New("too_few_lines")
	// ErrInvalidAmount indicates a non-positive or malformed line amount
	ErrInvalidAmount = errors.New("invalid_amount")
	// ErrClosedPeriod indicates a posting dated inside a CLOSED or LOCKED period
	ErrClosedPeriod = errors.New("closed_period")
	// ErrInactiveUser indicates a known but deactivated user
	ErrInactiveUser = errors.New("inactive_user")
	// ErrInactiveAccount indicates a line referencing a deactivated account
	ErrInactiveAccount = errors.New("inactive_account")
)
