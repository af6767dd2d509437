package domain

import (
	"fmt"
	"strings"
)

// NewStatus validates and creates a Status from its wire representation.
func NewStatus(s string) (Status, error) {
	status := Status(strings.ToLower(s))

	switch status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed,
		StatusRetrying, StatusDeadLettered:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, s)
	}
}

// NewKind validates and creates a Kind from its wire representation.
func NewKind(s string) (Kind, error) {
	kind := Kind(strings.ToLower(s))

	switch kind {
	case KindOneTime, KindRecurring, KindPolling:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, s)
	}
}

// NewPriority converts an arbitrary signed integer to a Priority as is;
// values between or beyond the named constants are kept, not clamped.
// The zero value is PriorityDefault.
func NewPriority(v int) Priority {
	return Priority(v)
}
