// Package errs classifies failures surfaced by the scheduler's control
// loops into the taxonomy every loop's top-level error handler switches
// on: transient, configuration, validation, execution, lock contention,
// and orphan.
package errs

import "errors"

var (
	// ErrTransient marks store/queue/lock I/O failures recoverable by
	// per-operation retry; on sustained failure the caller loop sleeps a
	// backoff and continues rather than aborting.
	ErrTransient = errors.New("transient error")

	// ErrConfiguration marks a fatal-at-startup condition: invalid URL,
	// missing required variable, invalid cron, resource precondition
	// failure.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks a malformed payload or bad status transition.
	// IsRetryable reports false for it. Jobs carry no no-retry flag, so a
	// job that fails this way is not dead-lettered immediately: the
	// watcher retries it like any other Failed job until its retry
	// budget is used up.
	ErrValidation = errors.New("validation error")

	// ErrExecution marks a non-zero exit, signal, timeout, or launch
	// failure. The affected job is marked Failed and is eligible for
	// retry.
	ErrExecution = errors.New("execution error")

	// ErrLockContention marks a failed (non-blocking) lock acquisition:
	// another instance already owns the job. Always handled silently.
	ErrLockContention = errors.New("lock contention")

	// ErrOrphaned marks a row the cleanup loop found stuck in Running
	// past its staleness threshold and converted to Failed.
	ErrOrphaned = errors.New("orphaned job")
)

// Transient wraps err as a retryable transient failure.
func Transient(op string, err error) error {
	return &wrapped{op: op, class: ErrTransient, cause: err}
}

// Configuration wraps err as a fatal configuration failure.
func Configuration(op string, err error) error {
	return &wrapped{op: op, class: ErrConfiguration, cause: err}
}

// Validation wraps err as a non-retryable validation failure.
func Validation(op string, err error) error {
	return &wrapped{op: op, class: ErrValidation, cause: err}
}

// Execution wraps err as a retryable execution failure.
func Execution(op string, err error) error {
	return &wrapped{op: op, class: ErrExecution, cause: err}
}

type wrapped struct {
	op    string
	class error
	cause error
}

func (w *wrapped) Error() string {
	if w.cause == nil {
		return w.op + ": " + w.class.Error()
	}
	return w.op + ": " + w.class.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.class, w.cause}
}

// IsRetryable reports whether err belongs to a class a caller loop
// should retry or re-sweep rather than abort on.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrExecution)
}

// IsFatal reports whether err should abort the process (configuration
// errors are the only fatal-at-runtime class per spec).
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
