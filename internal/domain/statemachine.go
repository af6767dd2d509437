package domain

import "time"

// transitions enumerates every legal (from, event) -> to edge. Callers
// never compare Status strings directly; they call the helpers below,
// which consult this table and return ErrIllegalTransition on any edge
// not present here (I1).
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true, // lease + lock acquired
	},
	StatusRunning: {
		StatusCompleted: true, // exit 0
		StatusFailed:    true, // exit != 0 / signal / timeout / orphaned
	},
	StatusFailed: {
		StatusPending:      true, // watcher schedules retry
		StatusRetrying:     true, // watcher marks in-flight backoff
		StatusDeadLettered: true, // retries >= max_retries
	},
	StatusRetrying: {
		StatusPending: true, // backoff elapsed, re-queued
	},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal
// edge in the state machine.
func CanTransition(from, to Status) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// MarkRunning transitions a Pending job to Running, incrementing
// retries per the executor's lease step. Returns ErrIllegalTransition
// if the job is not currently Pending.
func (j *Job) MarkRunning(now time.Time) error {
	if !CanTransition(j.Status, StatusRunning) {
		return ErrIllegalTransition
	}
	j.Status = StatusRunning
	j.StartedAt = &now
	j.Retries++
	j.UpdatedAt = now
	return nil
}

// MarkCompleted transitions a Running job to Completed.
func (j *Job) MarkCompleted(now time.Time, output string) error {
	if !CanTransition(j.Status, StatusCompleted) {
		return ErrIllegalTransition
	}
	j.Status = StatusCompleted
	j.FinishedAt = &now
	j.LastOutput = &output
	j.UpdatedAt = now
	return nil
}

// MarkFailed transitions a Running job to Failed; any other current
// status returns ErrIllegalTransition. The executor calls it on a failed
// run, and the cleanup loop's orphan reaper calls it directly on a
// Running row whose lock has expired.
func (j *Job) MarkFailed(now time.Time, reason string) error {
	if j.Status != StatusRunning {
		return ErrIllegalTransition
	}
	j.Status = StatusFailed
	j.FinishedAt = &now
	j.LastError = &reason
	j.UpdatedAt = now
	return nil
}

// MarkRetrying stamps a Failed job as Retrying while the watcher computes
// and applies backoff, without yet advancing scheduled_at.
func (j *Job) MarkRetrying(now time.Time) error {
	if !CanTransition(j.Status, StatusRetrying) {
		return ErrIllegalTransition
	}
	j.Status = StatusRetrying
	j.UpdatedAt = now
	return nil
}

// MarkPendingForRetry transitions a Failed or Retrying job back to
// Pending with a backoff-advanced scheduled_at (I1's Failed->Pending
// exception).
func (j *Job) MarkPendingForRetry(now, scheduledAt time.Time) error {
	if !CanTransition(j.Status, StatusPending) {
		return ErrIllegalTransition
	}
	j.Status = StatusPending
	j.ScheduledAt = scheduledAt
	j.UpdatedAt = now
	return nil
}

// MarkDeadLettered transitions a Failed job to the terminal
// DeadLettered state once retries are exhausted (I2).
func (j *Job) MarkDeadLettered(now time.Time) error {
	if !CanTransition(j.Status, StatusDeadLettered) {
		return ErrIllegalTransition
	}
	j.Status = StatusDeadLettered
	j.UpdatedAt = now
	return nil
}

// Due reports whether the job is eligible for the due-scan query.
func (j *Job) Due(now time.Time) bool {
	return j.Status == StatusPending && !j.ScheduledAt.After(now)
}

// ExhaustedRetries reports whether the job has used up its retry budget
// (I2): retries counts attempts already made, so exhaustion is reached
// once it is no longer strictly less than max_retries.
func (j *Job) ExhaustedRetries() bool {
	return j.Retries >= j.MaxRetries
}
