package domain

import (
	"testing"
	"time"
)

func TestJobMarkRunning_IncrementsRetries(t *testing.T) {
	job := &Job{Status: StatusPending, Retries: 0}

	now := time.Now().UTC()
	if err := job.MarkRunning(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusRunning {
		t.Errorf("expected Running, got %s", job.Status)
	}
	if job.Retries != 1 {
		t.Errorf("expected retries=1, got %d", job.Retries)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(now) {
		t.Errorf("expected StartedAt=%v, got %v", now, job.StartedAt)
	}
}

func TestJobMarkRunning_RejectsNonPending(t *testing.T) {
	job := &Job{Status: StatusRunning}

	if err := job.MarkRunning(time.Now().UTC()); err != ErrIllegalTransition {
		t.Errorf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestJobCompletePath(t *testing.T) {
	job := &Job{Status: StatusPending}
	now := time.Now().UTC()

	if err := job.MarkRunning(now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := job.MarkCompleted(now.Add(time.Second), "ok"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("expected Completed, got %s", job.Status)
	}
}

func TestJobFailThenDeadLetter(t *testing.T) {
	job := &Job{Status: StatusPending, MaxRetries: 1}
	now := time.Now().UTC()

	if err := job.MarkRunning(now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := job.MarkFailed(now, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if !job.ExhaustedRetries() {
		t.Fatalf("expected retries exhausted (retries=%d max=%d)", job.Retries, job.MaxRetries)
	}
	if err := job.MarkDeadLettered(now); err != nil {
		t.Fatalf("MarkDeadLettered: %v", err)
	}
	if job.Status != StatusDeadLettered {
		t.Errorf("expected DeadLettered, got %s", job.Status)
	}
}

func TestJobFailThenRetry(t *testing.T) {
	job := &Job{Status: StatusPending, MaxRetries: 3}
	now := time.Now().UTC()

	if err := job.MarkRunning(now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := job.MarkFailed(now, "transient"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if job.ExhaustedRetries() {
		t.Fatalf("did not expect retries exhausted")
	}
	next := now.Add(60 * time.Second)
	if err := job.MarkPendingForRetry(now, next); err != nil {
		t.Fatalf("MarkPendingForRetry: %v", err)
	}
	if job.Status != StatusPending || !job.ScheduledAt.Equal(next) {
		t.Errorf("expected Pending with ScheduledAt=%v, got status=%s scheduled=%v", next, job.Status, job.ScheduledAt)
	}
}

func TestJobDue(t *testing.T) {
	now := time.Now().UTC()
	job := &Job{Status: StatusPending, ScheduledAt: now.Add(-time.Second)}
	if !job.Due(now) {
		t.Error("expected job to be due")
	}

	job.ScheduledAt = now.Add(time.Hour)
	if job.Due(now) {
		t.Error("expected job not to be due")
	}
}

func TestCanTransition_RejectsUnknownEdges(t *testing.T) {
	if CanTransition(StatusCompleted, StatusRunning) {
		t.Error("Completed -> Running must not be a legal edge")
	}
	if CanTransition(StatusDeadLettered, StatusPending) {
		t.Error("DeadLettered -> Pending must not be a legal edge (terminal)")
	}
}
