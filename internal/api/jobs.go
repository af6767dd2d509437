package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/infrastructure/http/response"
	"github.com/rezkam/mono/internal/ptr"
)

var validJobKinds = map[string]domain.Kind{
	"one_time":  domain.KindOneTime,
	"recurring": domain.KindRecurring,
	"polling":   domain.KindPolling,
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "body", "malformed JSON")
		return
	}

	kind, ok := validJobKinds[req.Kind]
	if !ok {
		response.ValidationError(w, "kind", "must be one of one_time, recurring, polling")
		return
	}

	payload := req.Payload.toDomain()
	if err := payload.Validate(); err != nil {
		response.ValidationError(w, "payload", err.Error())
		return
	}
	if req.ScheduledAt.IsZero() {
		response.ValidationError(w, "scheduled_at", "must be set")
		return
	}

	priority := domain.PriorityDefault
	if req.Priority != nil {
		priority = domain.Priority(*req.Priority)
	}

	job := &domain.Job{
		Kind:        kind,
		Status:      domain.StatusPending,
		Priority:    priority,
		ScheduledAt: req.ScheduledAt,
		Payload:     payload,
		MaxRetries:  req.MaxRetries,
	}

	id, err := h.store.CreateJob(r.Context(), job)
	if err != nil {
		logInternal(r, "createJob", err)
		response.Internal(w)
		return
	}

	response.Created(w, toJobResponse(*job).withID(id))
}

// withID overrides the id field, used when the store mutates job.ID
// in place but the handler wants to be explicit about the wire value.
func (j jobResponse) withID(id string) jobResponse {
	j.ID = id
	return j
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "job")
			return
		}
		logInternal(r, "getJob", err)
		response.Internal(w)
		return
	}
	response.OK(w, toJobResponse(*job))
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "job")
			return
		}
		logInternal(r, "deleteJob", err)
		response.Internal(w)
		return
	}
	response.NoContent(w)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := domain.ListJobsParams{
		Limit:  parseIntOr(q.Get("limit"), 50),
		Offset: parseIntOr(q.Get("offset"), 0),
	}
	if statusParam := q.Get("status"); statusParam != "" {
		params.Status = ptr.To(domain.Status(statusParam))
	}
	if kindParam := q.Get("kind"); kindParam != "" {
		params.Kind = ptr.To(domain.Kind(kindParam))
	}
	if parentID := q.Get("parent_id"); parentID != "" {
		params.ParentID = ptr.To(parentID)
	}

	paged, err := h.store.ListJobs(r.Context(), params)
	if err != nil {
		logInternal(r, "listJobs", err)
		response.Internal(w)
		return
	}
	response.OK(w, toPagedJobsResponse(paged))
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
