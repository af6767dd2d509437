// Package core declares the Storage interface shared by every durable
// store implementation (Postgres and the in-memory memstore).
package core

import (
	"context"
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// Storage is the transactional interface over job and template
// collections (C1). Every operation is atomic; status writes to a
// single row are linearizable.
type Storage interface {
	// CreateJob persists a new job row and returns its generated id.
	CreateJob(ctx context.Context, job *domain.Job) (string, error)

	// GetJob retrieves a job by id. Returns domain.ErrNotFound if absent.
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// UpdateJob applies delta to the row named by id. updated_at is set
	// by the store. Returns domain.ErrNotFound if the row does not exist,
	// domain.ErrNoRowsAffected if an optimistic precondition failed to
	// match (the caller lost a race and should treat this as a no-op).
	UpdateJob(ctx context.Context, id string, delta domain.UpdateJobParams) error

	// DeleteJob removes a job row outright (used by API-level deletes,
	// distinct from archival).
	DeleteJob(ctx context.Context, id string) error

	// ListDue returns rows due for dispatch: status=Pending and
	// scheduled_at <= now, ordered (priority DESC, scheduled_at ASC),
	// capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Job, error)

	// ListByStatus returns every row in the given status.
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Job, error)

	// ListOlderThan returns terminal rows created before cutoff, for the
	// archiver sweep.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Job, error)

	// ListByStatusAndTime returns rows in the given status whose
	// updated_at is at or before cutoff, for the orphan reaper.
	ListByStatusAndTime(ctx context.Context, status domain.Status, cutoff time.Time) ([]domain.Job, error)

	// ListJobs supports general filtered/paginated operational queries.
	ListJobs(ctx context.Context, params domain.ListJobsParams) (*domain.PagedJobs, error)

	// CreateTemplate persists a new recurring template and returns its id.
	CreateTemplate(ctx context.Context, tpl *domain.Template) (string, error)

	// GetTemplate retrieves a template by id.
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)

	// UpdateTemplate applies delta to the template named by id.
	UpdateTemplate(ctx context.Context, id string, delta domain.UpdateTemplateParams) error

	// DeleteTemplate removes a template outright; it does not touch
	// jobs it already materialized.
	DeleteTemplate(ctx context.Context, id string) error

	// ListActiveTemplates returns every template with active=true, for
	// the materializer's scan.
	ListActiveTemplates(ctx context.Context) ([]domain.Template, error)

	// Close releases underlying connections/resources.
	Close() error
}
