package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rezkam/mono/internal/api"
	"github.com/rezkam/mono/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestCreateJob_ValidPayloadReturns201(t *testing.T) {
	h := api.NewHandler(memstore.New())

	body := map[string]any{
		"kind":         "one_time",
		"scheduled_at": time.Now().UTC().Format(time.RFC3339),
		"payload":      map[string]any{"command": "echo", "args": []string{"hi"}},
		"max_retries":  3,
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/jobs/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.NotEmpty(t, decoded["id"])
	require.Equal(t, "pending", decoded["status"])
}

func TestCreateJob_MissingCommandIsRejected(t *testing.T) {
	h := api.NewHandler(memstore.New())

	body := map[string]any{
		"kind":         "one_time",
		"scheduled_at": time.Now().UTC().Format(time.RFC3339),
		"payload":      map[string]any{},
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/jobs/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFoundReturns404(t *testing.T) {
	h := api.NewHandler(memstore.New())

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplate_AndFetchRoundTrips(t *testing.T) {
	h := api.NewHandler(memstore.New())

	body := map[string]any{
		"cron":     "*/5 * * * *",
		"timezone": "UTC",
		"payload":  map[string]any{"command": "echo"},
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/templates/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)

	getReq := httptest.NewRequest(http.MethodGet, "/templates/"+id, nil)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
}

func TestUpdateTemplate_EmptyBodyIsRejected(t *testing.T) {
	h := api.NewHandler(memstore.New())

	createBody, _ := json.Marshal(map[string]any{
		"cron":    "* * * * *",
		"payload": map[string]any{"command": "echo"},
	})
	createReq := httptest.NewRequest(http.MethodPost, "/templates/", bytes.NewReader(createBody))
	createRec := httptest.NewRecorder()
	h.ServeHTTP(createRec, createReq)
	var created map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	id := created["id"].(string)

	patchReq := httptest.NewRequest(http.MethodPatch, "/templates/"+id, bytes.NewReader([]byte(`{}`)))
	patchRec := httptest.NewRecorder()
	h.ServeHTTP(patchRec, patchReq)
	require.Equal(t, http.StatusBadRequest, patchRec.Code)
}
