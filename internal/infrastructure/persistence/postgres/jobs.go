package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rezkam/mono/internal/domain"
)

// CreateJob persists a new job row and returns its generated id.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) (string, error) {
	id := job.ID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate job id: %w", err)
		}
		id = generated.String()
	}

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	const query = `
		INSERT INTO jobs (
			id, kind, status, priority, scheduled_at, parent_id, worker_id,
			max_retries, retries, payload, poll_interval_seconds, max_attempts,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $13)`

	status := job.Status
	if status == "" {
		status = domain.StatusPending
	}

	var pollSeconds *int64
	if job.PollInterval != nil {
		seconds := int64(job.PollInterval.Seconds())
		pollSeconds = &seconds
	}

	_, err = s.pool.Exec(ctx, query,
		id, string(job.Kind), string(status), int(job.Priority), job.ScheduledAt, job.ParentID, job.WorkerID,
		job.MaxRetries, job.Retries, payload, pollSeconds, job.MaxAttempts,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}

	job.ID = id
	job.Status = status
	job.CreatedAt = now
	job.UpdatedAt = now
	return id, nil
}

const jobColumns = `id, kind, status, priority, scheduled_at, started_at, finished_at,
	enqueued_at, parent_id, worker_id, max_retries, retries, payload, poll_interval_seconds,
	max_attempts, last_error, last_output, archived, created_at, updated_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j             domain.Job
		kind, status  string
		priority      int
		pollSeconds   *int64
		payload       []byte
	)

	err := row.Scan(
		&j.ID, &kind, &status, &priority, &j.ScheduledAt, &j.StartedAt, &j.FinishedAt,
		&j.EnqueuedAt, &j.ParentID, &j.WorkerID, &j.MaxRetries, &j.Retries, &payload, &pollSeconds,
		&j.MaxAttempts, &j.LastError, &j.LastOutput, &j.Archived, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Kind = domain.Kind(kind)
	j.Status = domain.Status(status)
	j.Priority = domain.Priority(priority)
	if pollSeconds != nil {
		d := time.Duration(*pollSeconds) * time.Second
		j.PollInterval = &d
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &j, nil
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)
	row := s.pool.QueryRow(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob applies delta to the row named by id.
func (s *Store) UpdateJob(ctx context.Context, id string, delta domain.UpdateJobParams) error {
	if err := delta.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}

	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, field := range delta.UpdateMask {
		switch field {
		case "status":
			sets = append(sets, "status = "+next(string(*delta.Status)))
		case "priority":
			sets = append(sets, "priority = "+next(int(*delta.Priority)))
		case "scheduled_at":
			sets = append(sets, "scheduled_at = "+next(*delta.ScheduledAt))
		case "started_at":
			sets = append(sets, "started_at = "+next(*delta.StartedAt))
		case "finished_at":
			sets = append(sets, "finished_at = "+next(*delta.FinishedAt))
		case "enqueued_at":
			sets = append(sets, "enqueued_at = "+next(*delta.EnqueuedAt))
		case "retries":
			sets = append(sets, "retries = "+next(*delta.Retries))
		case "last_error":
			sets = append(sets, "last_error = "+next(*delta.LastError))
		case "last_output":
			sets = append(sets, "last_output = "+next(*delta.LastOutput))
		case "archived":
			sets = append(sets, "archived = "+next(*delta.Archived))
		case "worker_id":
			sets = append(sets, "worker_id = "+next(delta.WorkerID))
		}
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, existsErr := s.jobExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
		}
		return domain.ErrNoRowsAffected
	}
	return nil
}

func (s *Store) jobExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job existence: %w", err)
	}
	return exists, nil
}

// DeleteJob removes a job row outright.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return nil
}

func queryJobs(ctx context.Context, pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, query string, args ...any) ([]domain.Job, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ListDue returns rows due for dispatch, ordered (priority DESC,
// scheduled_at ASC), capped at limit. Uses the (status, scheduled_at,
// priority) index named in §6.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT $3`, jobColumns)
	jobs, err := queryJobs(ctx, s.pool, query, string(domain.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	return jobs, nil
}

// ListByStatus returns every row in the given status.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE status = $1`, jobColumns)
	jobs, err := queryJobs(ctx, s.pool, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	return jobs, nil
}

// ListOlderThan returns unarchived Completed and DeadLettered rows
// created before cutoff, eligible for archival.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE archived = false AND created_at < $1
		AND status IN ($2, $3)`, jobColumns)
	jobs, err := queryJobs(ctx, s.pool, query, cutoff, string(domain.StatusCompleted), string(domain.StatusDeadLettered))
	if err != nil {
		return nil, fmt.Errorf("list archivable jobs: %w", err)
	}
	return jobs, nil
}

// ListByStatusAndTime returns rows in the given status whose updated_at
// is at or before cutoff, for the orphan reaper.
func (s *Store) ListByStatusAndTime(ctx context.Context, status domain.Status, cutoff time.Time) ([]domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE status = $1 AND updated_at <= $2`, jobColumns)
	jobs, err := queryJobs(ctx, s.pool, query, string(status), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}

// ListJobs supports general filtered/paginated operational queries.
func (s *Store) ListJobs(ctx context.Context, params domain.ListJobsParams) (*domain.PagedJobs, error) {
	where := []string{"1=1"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != nil {
		where = append(where, "status = "+next(string(*params.Status)))
	}
	if params.Kind != nil {
		where = append(where, "kind = "+next(string(*params.Kind)))
	}
	if params.ParentID != nil {
		where = append(where, "parent_id = "+next(*params.ParentID))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM jobs WHERE %s`, strings.Join(where, " AND "))
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	listArgs := append(append([]any{}, args...), limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM jobs WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, jobColumns, strings.Join(where, " AND "), len(listArgs)-1, len(listArgs))

	jobs, err := queryJobs(ctx, s.pool, query, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return &domain.PagedJobs{
		Items:      jobs,
		TotalCount: total,
		HasMore:    params.Offset+len(jobs) < total,
	}, nil
}
