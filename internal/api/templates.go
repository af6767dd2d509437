package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/infrastructure/http/response"
)

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "body", "malformed JSON")
		return
	}

	if req.Cron == "" {
		response.ValidationError(w, "cron", "must be set")
		return
	}

	payload := req.Payload.toDomain()
	if err := payload.Validate(); err != nil {
		response.ValidationError(w, "payload", err.Error())
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	priority := domain.PriorityDefault
	if req.Priority != nil {
		priority = domain.Priority(*req.Priority)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	tpl := &domain.Template{
		Cron:            req.Cron,
		Timezone:        timezone,
		Payload:         payload,
		Priority:        priority,
		MaxRetries:      req.MaxRetries,
		Active:          active,
		SyncHorizonDays: req.SyncHorizonDays,
	}

	id, err := h.store.CreateTemplate(r.Context(), tpl)
	if err != nil {
		logInternal(r, "createTemplate", err)
		response.Internal(w)
		return
	}
	tpl.ID = id

	response.Created(w, toTemplateResponse(*tpl))
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tpl, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "template")
			return
		}
		logInternal(r, "getTemplate", err)
		response.Internal(w)
		return
	}
	response.OK(w, toTemplateResponse(*tpl))
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ValidationError(w, "body", "malformed JSON")
		return
	}

	params := domain.UpdateTemplateParams{}
	if req.Cron != nil {
		params.UpdateMask = append(params.UpdateMask, "cron")
		params.Cron = req.Cron
	}
	if req.Timezone != nil {
		params.UpdateMask = append(params.UpdateMask, "timezone")
		params.Timezone = req.Timezone
	}
	if req.Payload != nil {
		domainPayload := req.Payload.toDomain()
		params.UpdateMask = append(params.UpdateMask, "payload")
		params.Payload = &domainPayload
	}
	if req.Priority != nil {
		params.UpdateMask = append(params.UpdateMask, "priority")
		priority := domain.Priority(*req.Priority)
		params.Priority = &priority
	}
	if req.MaxRetries != nil {
		params.UpdateMask = append(params.UpdateMask, "max_retries")
		params.MaxRetries = req.MaxRetries
	}
	if req.Active != nil {
		params.UpdateMask = append(params.UpdateMask, "active")
		params.Active = req.Active
	}

	if len(params.UpdateMask) == 0 {
		response.ValidationError(w, "body", "at least one field must be set")
		return
	}

	if err := h.store.UpdateTemplate(r.Context(), id, params); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "template")
			return
		}
		logInternal(r, "updateTemplate", err)
		response.Internal(w)
		return
	}

	tpl, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		logInternal(r, "updateTemplate:reload", err)
		response.Internal(w)
		return
	}
	response.OK(w, toTemplateResponse(*tpl))
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteTemplate(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "template")
			return
		}
		logInternal(r, "deleteTemplate", err)
		response.Internal(w)
		return
	}
	response.NoContent(w)
}
