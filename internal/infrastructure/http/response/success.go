// Package response provides uniform JSON envelopes for the thin HTTP CRUD
// surface in front of the scheduler's durable store.
package response

import (
	"encoding/json"
	"net/http"
)

// OK writes data as a 200 JSON response.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, data)
}

// Created writes data as a 201 JSON response.
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, data)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func write(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		Error(w, "INTERNAL_ERROR", "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
