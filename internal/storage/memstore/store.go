// Package memstore is an in-memory core.Storage implementation backed by
// a mutex-guarded map, used by unit tests and the compliance suite's
// fast path.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rezkam/mono/internal/core"
	"github.com/rezkam/mono/internal/domain"
)

// Store is a non-durable core.Storage implementation. It never fsyncs
// or persists across process restarts; use only for tests.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]domain.Job
	templates map[string]domain.Template
}

var _ core.Storage = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[string]domain.Job),
		templates: make(map[string]domain.Template),
	}
}

func (s *Store) CreateJob(_ context.Context, job *domain.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = domain.StatusPending
	}
	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now

	stored := *job
	stored.Payload = job.Payload.Clone()
	s.jobs[id] = stored
	return id, nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := job
	return &clone, nil
}

func (s *Store) UpdateJob(_ context.Context, id string, delta domain.UpdateJobParams) error {
	if err := delta.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}

	for _, field := range delta.UpdateMask {
		switch field {
		case "status":
			job.Status = *delta.Status
		case "priority":
			job.Priority = *delta.Priority
		case "scheduled_at":
			job.ScheduledAt = *delta.ScheduledAt
		case "started_at":
			job.StartedAt = delta.StartedAt
		case "finished_at":
			job.FinishedAt = delta.FinishedAt
		case "enqueued_at":
			job.EnqueuedAt = delta.EnqueuedAt
		case "retries":
			job.Retries = *delta.Retries
		case "last_error":
			job.LastError = delta.LastError
		case "last_output":
			job.LastOutput = delta.LastOutput
		case "archived":
			job.Archived = *delta.Archived
		case "worker_id":
			job.WorkerID = delta.WorkerID
		}
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.StatusPending && !job.ScheduledAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.Status) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *Store) ListOlderThan(_ context.Context, cutoff time.Time) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if !job.Archived && job.CreatedAt.Before(cutoff) &&
			(job.Status == domain.StatusCompleted || job.Status == domain.StatusDeadLettered) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *Store) ListByStatusAndTime(_ context.Context, status domain.Status, cutoff time.Time) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == status && !job.UpdatedAt.After(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *Store) ListJobs(_ context.Context, params domain.ListJobsParams) (*domain.PagedJobs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Job
	for _, job := range s.jobs {
		if params.Status != nil && job.Status != *params.Status {
			continue
		}
		if params.Kind != nil && job.Kind != *params.Kind {
			continue
		}
		if params.ParentID != nil && (job.ParentID == nil || *job.ParentID != *params.ParentID) {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &domain.PagedJobs{
		Items:      matched[start:end],
		TotalCount: total,
		HasMore:    end < total,
	}, nil
}

func (s *Store) CreateTemplate(_ context.Context, tpl *domain.Template) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tpl.ID
	if id == "" {
		id = uuid.NewString()
	}
	if tpl.Timezone == "" {
		tpl.Timezone = "UTC"
	}
	now := time.Now().UTC()
	tpl.ID = id
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	s.templates[id] = *tpl
	return id, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := tpl
	return &clone, nil
}

func (s *Store) UpdateTemplate(_ context.Context, id string, delta domain.UpdateTemplateParams) error {
	if err := delta.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[id]
	if !ok {
		return domain.ErrNotFound
	}

	for _, field := range delta.UpdateMask {
		switch field {
		case "cron":
			tpl.Cron = *delta.Cron
		case "timezone":
			tpl.Timezone = *delta.Timezone
		case "payload":
			tpl.Payload = delta.Payload.Clone()
		case "priority":
			tpl.Priority = *delta.Priority
		case "max_retries":
			tpl.MaxRetries = *delta.MaxRetries
		case "active":
			tpl.Active = *delta.Active
		case "last_materialized_until":
			tpl.LastMaterializedUntil = *delta.LastMaterializedUntil
		case "sync_horizon_days":
			tpl.SyncHorizonDays = delta.SyncHorizonDays
		}
	}
	tpl.UpdatedAt = time.Now().UTC()
	s.templates[id] = tpl
	return nil
}

func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) ListActiveTemplates(_ context.Context) ([]domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Template
	for _, tpl := range s.templates {
		if tpl.Active {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
