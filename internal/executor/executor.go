// Package executor implements the dispatch-and-run loop (C6): it
// drains the priority queue, enforces a per-instance concurrency cap,
// leases and locks each job across instances, runs its payload in the
// sandbox, and drives the state machine to a terminal-for-this-attempt
// status. Retry scheduling is left to the failure watcher (C7); the
// executor only ever writes Failed on a bad outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/errs"
	"github.com/rezkam/mono/internal/lock"
	"github.com/rezkam/mono/internal/ptr"
	"github.com/rezkam/mono/internal/queue"
	"github.com/rezkam/mono/internal/sandbox"
)

// Config controls the executor's concurrency and the queues it drains.
type Config struct {
	// ConcurrencyLimit bounds in-flight execution tasks per instance.
	ConcurrencyLimit int64
	// QueueNames lists the priority queues to drain, highest-priority
	// class first.
	QueueNames []string
	// LockTTL is the distributed lock's expiry, long enough to outlive
	// a single execution attempt.
	LockTTL time.Duration
	// EmptyQueueBackoff is the sleep applied when every queue is empty.
	EmptyQueueBackoff time.Duration
	// WorkerID identifies this instance in lock ownership and the
	// job's worker_id column.
	WorkerID string
}

func (c Config) withDefaults() Config {
	if len(c.QueueNames) == 0 {
		c.QueueNames = []string{"default"}
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	if c.EmptyQueueBackoff <= 0 {
		c.EmptyQueueBackoff = time.Second
	}
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = 10
	}
	if c.WorkerID == "" {
		c.WorkerID = uuid.NewString()
	}
	return c
}

// Executor drains the dispatch queue and runs jobs under sandbox limits.
type Executor struct {
	store   core.Storage
	queue   *queue.Queue
	locker  *lock.Locker
	sandbox *sandbox.Sandbox
	cfg     Config
	sem     *semaphore.Weighted
}

// New constructs an Executor. sb governs resource limits and timeout
// for every job this instance runs.
func New(store core.Storage, q *queue.Queue, locker *lock.Locker, sb *sandbox.Sandbox, cfg Config) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		store:   store,
		queue:   q,
		locker:  locker,
		sandbox: sb,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.ConcurrencyLimit),
	}
}

// Run blocks, draining the queue until ctx is cancelled. On
// cancellation it stops accepting new work and waits for every
// in-flight task to finish before returning. The wait has no deadline
// of its own: each task is bounded only by the sandbox's wall-clock
// timeout plus its store writes, and no in-flight task is abandoned.
func (e *Executor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return e.drain(ctx)
		}

		if err := e.sem.Acquire(ctx, 1); err != nil {
			return e.drain(ctx)
		}

		jobID, err := e.popNext(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to pop from queue", "error", err)
			e.sem.Release(1)
			time.Sleep(e.cfg.EmptyQueueBackoff)
			continue
		}
		if jobID == "" {
			e.sem.Release(1)
			select {
			case <-ctx.Done():
				return e.drain(ctx)
			case <-time.After(e.cfg.EmptyQueueBackoff):
			}
			continue
		}

		go func(id string) {
			defer e.sem.Release(1)
			e.executeOne(context.WithoutCancel(ctx), id)
		}(jobID)
	}
}

// drain waits for any in-flight execution tasks to release their
// semaphore slots, up to the executor's full concurrency capacity —
// the grace period spec.md §4.6 calls for on shutdown.
func (e *Executor) drain(ctx context.Context) error {
	_ = e.sem.Acquire(context.Background(), e.cfg.ConcurrencyLimit)
	return ctx.Err()
}

func (e *Executor) popNext(ctx context.Context) (string, error) {
	for _, name := range e.cfg.QueueNames {
		jobID, err := e.queue.Pop(ctx, name)
		if err != nil {
			return "", errs.Transient("pop queue "+name, err)
		}
		if jobID != "" {
			return jobID, nil
		}
	}
	return "", nil
}

// executeOne runs the single-job lease→lock→run→record pipeline.
// Every error is logged and swallowed: a long-running loop never
// aborts the process on a per-job failure.
func (e *Executor) executeOne(ctx context.Context, jobID string) {
	owner := e.cfg.WorkerID
	acquired, err := e.locker.Acquire(ctx, jobID, owner, e.cfg.LockTTL)
	if err != nil {
		slog.ErrorContext(ctx, "lock acquire failed", "job_id", jobID, "error", errs.Transient("lock acquire", err))
		return
	}
	if !acquired {
		return // another instance already holds it; drop silently (P4)
	}
	defer func() {
		if _, err := e.locker.Release(ctx, jobID, owner); err != nil {
			slog.ErrorContext(ctx, "lock release failed", "job_id", jobID, "error", err)
		}
	}()

	job, err := e.lease(ctx, jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoRowsAffected) && !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to lease job", "job_id", jobID, "error", errs.Transient("lease job", err))
		}
		return
	}
	if job == nil {
		return // lost the race to another transition, or row vanished
	}

	result, runErr := e.sandbox.Run(ctx, job.Payload)
	if runErr != nil {
		slog.ErrorContext(ctx, "sandbox launch failed", "job_id", job.ID, "error", errs.Execution("sandbox run", runErr))
		e.recordFailure(ctx, job, fmt.Sprintf("launch failed: %v", runErr))
		return
	}

	switch {
	case result.TimedOut:
		slog.WarnContext(ctx, "job timed out", "job_id", job.ID,
			"error", errs.Execution("sandbox run", errors.New("exceeded wall-clock timeout")))
		e.recordFailure(ctx, job, "timeout")
	case result.ExitCode != 0:
		exitErr := fmt.Errorf("exit status %d: %s", result.ExitCode, result.Stderr)
		slog.WarnContext(ctx, "job exited non-zero", "job_id", job.ID, "error", errs.Execution("sandbox run", exitErr))
		e.recordFailure(ctx, job, exitErr.Error())
	default:
		e.recordSuccess(ctx, job, result.Stdout)
	}
}

// lease resolves the popped id against the store and, iff it is still
// Pending, transitions it to Running. A non-Pending or missing row
// means another instance (or the watcher) already moved it on; this
// returns (nil, nil) rather than an error so the caller just drops it.
func (e *Executor) lease(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, errs.Transient("get job", err)
	}
	if job.Status != domain.StatusPending {
		return nil, nil
	}

	now := time.Now().UTC()
	if err := job.MarkRunning(now); err != nil {
		return nil, nil
	}

	err = e.store.UpdateJob(ctx, jobID, domain.UpdateJobParams{
		UpdateMask: []string{"status", "started_at", "retries", "worker_id"},
		Status:     ptr.To(domain.StatusRunning),
		StartedAt:  job.StartedAt,
		Retries:    ptr.To(job.Retries),
		WorkerID:   ptr.To(e.cfg.WorkerID),
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoRowsAffected) {
			return nil, nil // lost the race
		}
		return nil, errs.Transient("update job to running", err)
	}
	return job, nil
}

func (e *Executor) recordSuccess(ctx context.Context, job *domain.Job, stdout string) {
	now := time.Now().UTC()
	if err := job.MarkCompleted(now, stdout); err != nil {
		slog.ErrorContext(ctx, "illegal completed transition", "job_id", job.ID, "error", err)
		return
	}
	err := e.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
		UpdateMask: []string{"status", "finished_at", "last_output"},
		Status:     ptr.To(domain.StatusCompleted),
		FinishedAt: job.FinishedAt,
		LastOutput: job.LastOutput,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record completion", "job_id", job.ID, "error", err)
	}
	if err := e.queue.ClearInFlight(ctx, job.ID); err != nil {
		slog.WarnContext(ctx, "failed to clear in-flight marker", "job_id", job.ID, "error", err)
	}
}

func (e *Executor) recordFailure(ctx context.Context, job *domain.Job, reason string) {
	now := time.Now().UTC()
	if err := job.MarkFailed(now, reason); err != nil {
		slog.ErrorContext(ctx, "illegal failed transition", "job_id", job.ID, "error", err)
		return
	}
	err := e.store.UpdateJob(ctx, job.ID, domain.UpdateJobParams{
		UpdateMask: []string{"status", "finished_at", "last_error"},
		Status:     ptr.To(domain.StatusFailed),
		FinishedAt: job.FinishedAt,
		LastError:  job.LastError,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record failure", "job_id", job.ID, "error", err)
	}
	if err := e.queue.ClearInFlight(ctx, job.ID); err != nil {
		slog.WarnContext(ctx, "failed to clear in-flight marker", "job_id", job.ID, "error", err)
	}
	// Retry scheduling is the watcher's job (spec designates it
	// authoritative); the executor stops here on every failure path.
}
