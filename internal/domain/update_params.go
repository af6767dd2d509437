package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyUpdateMask = errors.New("update mask must not be empty")
	ErrUnknownField    = errors.New("unknown field in update mask")
	ErrStatusRequired  = errors.New("status is required when included in update mask")
	ErrCronRequired    = errors.New("cron is required when included in update mask")
)

// UpdateJobParams is the delta accepted by Store.UpdateJob: any mutable
// field subset, named by UpdateMask. updated_at is always set by the
// store itself (I6), never by the caller.
type UpdateJobParams struct {
	UpdateMask []string

	Status      *Status
	Priority    *Priority
	ScheduledAt *time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	EnqueuedAt  *time.Time
	Retries     *int
	LastError   *string
	LastOutput  *string
	Archived    *bool
	WorkerID    *string
}

var updateJobValidFields = map[string]struct{}{
	"status":       {},
	"priority":     {},
	"scheduled_at": {},
	"started_at":   {},
	"finished_at":  {},
	"enqueued_at":  {},
	"retries":      {},
	"last_error":   {},
	"last_output":  {},
	"archived":     {},
	"worker_id":    {},
}

// Validate checks that UpdateMask contains only known fields and that
// required fields have non-nil values when included in the mask.
func (p UpdateJobParams) Validate() error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	mask := make(map[string]bool, len(p.UpdateMask))
	for _, field := range p.UpdateMask {
		if _, ok := updateJobValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		mask[field] = true
	}

	if mask["status"] && p.Status == nil {
		return ErrStatusRequired
	}
	return nil
}

// UpdateTemplateParams is the delta accepted by Store.UpdateTemplate.
type UpdateTemplateParams struct {
	UpdateMask []string

	Cron                   *string
	Timezone               *string
	Payload                *Payload
	Priority               *Priority
	MaxRetries             *int
	Active                 *bool
	LastMaterializedUntil  *time.Time
	SyncHorizonDays        *int
}

var updateTemplateValidFields = map[string]struct{}{
	"cron":                     {},
	"timezone":                 {},
	"payload":                  {},
	"priority":                 {},
	"max_retries":              {},
	"active":                   {},
	"last_materialized_until":  {},
	"sync_horizon_days":        {},
}

// Validate checks that UpdateMask contains only known fields and that
// required fields have non-nil values when included in the mask.
func (p UpdateTemplateParams) Validate() error {
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	mask := make(map[string]bool, len(p.UpdateMask))
	for _, field := range p.UpdateMask {
		if _, ok := updateTemplateValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		mask[field] = true
	}

	if mask["cron"] && p.Cron == nil {
		return ErrCronRequired
	}
	return nil
}
