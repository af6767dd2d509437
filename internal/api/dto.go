package api

import (
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// jobResponse is the wire shape for a job row; domain.Job carries no
// json tags of its own since it is an internal aggregate, not a wire
// contract.
type jobResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	EnqueuedAt  *time.Time `json:"enqueued_at,omitempty"`
	Payload     payloadDTO `json:"payload"`
	ParentID    *string    `json:"parent_id,omitempty"`
	WorkerID    *string    `json:"worker_id,omitempty"`
	Retries     int        `json:"retries"`
	MaxRetries  int        `json:"max_retries"`
	LastError   *string    `json:"last_error,omitempty"`
	LastOutput  *string    `json:"last_output,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type payloadDTO struct {
	Command string           `json:"command"`
	Args    []string         `json:"args"`
	Env     []envVarResponse `json:"env,omitempty"`
}

type envVarResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func toPayloadDTO(p domain.Payload) payloadDTO {
	env := make([]envVarResponse, len(p.Env))
	for i, e := range p.Env {
		env[i] = envVarResponse{Name: e.Name, Value: e.Value}
	}
	return payloadDTO{Command: p.Command, Args: p.Args, Env: env}
}

func (p payloadDTO) toDomain() domain.Payload {
	env := make([]domain.EnvVar, len(p.Env))
	for i, e := range p.Env {
		env[i] = domain.EnvVar{Name: e.Name, Value: e.Value}
	}
	return domain.Payload{Command: p.Command, Args: p.Args, Env: env}
}

func toJobResponse(j domain.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Priority:    int(j.Priority),
		ScheduledAt: j.ScheduledAt,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
		EnqueuedAt:  j.EnqueuedAt,
		Payload:     toPayloadDTO(j.Payload),
		ParentID:    j.ParentID,
		WorkerID:    j.WorkerID,
		Retries:     j.Retries,
		MaxRetries:  j.MaxRetries,
		LastError:   j.LastError,
		LastOutput:  j.LastOutput,
		Archived:    j.Archived,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

type pagedJobsResponse struct {
	Items      []jobResponse `json:"items"`
	TotalCount int           `json:"total_count"`
	HasMore    bool          `json:"has_more"`
}

func toPagedJobsResponse(p *domain.PagedJobs) pagedJobsResponse {
	items := make([]jobResponse, len(p.Items))
	for i, j := range p.Items {
		items[i] = toJobResponse(j)
	}
	return pagedJobsResponse{Items: items, TotalCount: p.TotalCount, HasMore: p.HasMore}
}

// createJobRequest is the body accepted by POST /jobs.
type createJobRequest struct {
	Kind        string     `json:"kind"`
	Priority    *int       `json:"priority,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Payload     payloadDTO `json:"payload"`
	MaxRetries  int        `json:"max_retries"`
}

type templateResponse struct {
	ID                    string     `json:"id"`
	Cron                  string     `json:"cron"`
	Timezone              string     `json:"timezone"`
	Payload               payloadDTO `json:"payload"`
	Priority              int        `json:"priority"`
	MaxRetries            int        `json:"max_retries"`
	Active                bool       `json:"active"`
	LastMaterializedUntil time.Time  `json:"last_materialized_until"`
	SyncHorizonDays       *int       `json:"sync_horizon_days,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func toTemplateResponse(t domain.Template) templateResponse {
	return templateResponse{
		ID:                    t.ID,
		Cron:                  t.Cron,
		Timezone:              t.Timezone,
		Payload:               toPayloadDTO(t.Payload),
		Priority:              int(t.Priority),
		MaxRetries:            t.MaxRetries,
		Active:                t.Active,
		LastMaterializedUntil: t.LastMaterializedUntil,
		SyncHorizonDays:       t.SyncHorizonDays,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

// createTemplateRequest is the body accepted by POST /templates.
type createTemplateRequest struct {
	Cron            string     `json:"cron"`
	Timezone        string     `json:"timezone"`
	Payload         payloadDTO `json:"payload"`
	Priority        *int       `json:"priority,omitempty"`
	MaxRetries      int        `json:"max_retries"`
	Active          *bool      `json:"active,omitempty"`
	SyncHorizonDays *int       `json:"sync_horizon_days,omitempty"`
}

// updateTemplateRequest is the body accepted by PATCH /templates/{id};
// every field is optional, and only those present in UpdateMask apply.
type updateTemplateRequest struct {
	Cron       *string     `json:"cron,omitempty"`
	Timezone   *string     `json:"timezone,omitempty"`
	Payload    *payloadDTO `json:"payload,omitempty"`
	Priority   *int        `json:"priority,omitempty"`
	MaxRetries *int        `json:"max_retries,omitempty"`
	Active     *bool       `json:"active,omitempty"`
}
