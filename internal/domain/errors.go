package domain

import "errors"

// Domain errors - returned by store implementations and checked by
// callers across component boundaries.

var (
	// ErrNotFound indicates the requested job or template does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidID indicates the provided id is not a well-formed UUID.
	ErrInvalidID = errors.New("invalid id format")

	// ErrIllegalTransition indicates a requested status transition is not
	// permitted by the state machine from the row's current status.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNoRowsAffected indicates an update's optimistic precondition
	// (usually a status check) did not match any row; the caller lost a
	// race and should treat this as a no-op, not an error to surface.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrInvalidPayload indicates the job payload does not conform to the
	// canonical {command, args, env} shape.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrRetriesExhausted indicates retries has reached max_retries; the
	// job must be dead-lettered rather than retried.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrDurationEmpty indicates an ISO 8601 duration string was empty.
	ErrDurationEmpty = errors.New("duration string is empty")

	// ErrInvalidDurationFormat indicates an ISO 8601 duration string was
	// malformed.
	ErrInvalidDurationFormat = errors.New("invalid ISO 8601 duration format")

	// ErrInvalidStatus indicates an unrecognized status string.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidKind indicates an unrecognized job kind string.
	ErrInvalidKind = errors.New("invalid job kind")

	// ErrInvalidAPIKeyFormat indicates a presented API key string does not
	// match the expected {type}-{service}-{version}-{short}-{long} shape.
	ErrInvalidAPIKeyFormat = errors.New("invalid API key format")

	// ErrUnauthorized indicates a presented credential failed verification.
	ErrUnauthorized = errors.New("unauthorized")
)
