package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/workflow"
)

func newWorkflowRouter(t *testing.T) chi.Router {
	t.Helper()
	store := workflow.NewStore(time.Minute, testLogger())
	h := NewWorkflowHandler(store, testLogger())

	r := chi.NewRouter()
	r.Mount("/workflow", h.Routes())
	return r
}

type sessionEnvelope struct {
	Success bool             `json:"success"`
	Data    workflow.Session `json:"data"`
}

func createSession(t *testing.T, router chi.Router) workflow.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/workflow/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.ID)
	return env.Data
}

func TestWorkflowSessionLifecycle(t *testing.T) {
	router := newWorkflowRouter(t)
	sess := createSession(t, router)
	assert.Equal(t, workflow.StepStart, sess.CurrentStep)

	rec := get(t, router, "/workflow/sessions/"+sess.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/workflow/sessions/"+sess.ID+"/advance", map[string]interface{}{
		"step":     "upload_data",
		"has_data": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, workflow.StepUploadData, env.Data.CurrentStep)
	assert.True(t, env.Data.HasData)

	// With data attached, the decision table points at assumption checks.
	rec = get(t, router, "/workflow/sessions/"+sess.ID+"/next")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "check_assumptions")

	req := httptest.NewRequest(http.MethodDelete, "/workflow/sessions/"+sess.ID, nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	rec = get(t, router, "/workflow/sessions/"+sess.ID)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_NOT_FOUND")
}

func TestWorkflowAdvanceUnknownStep(t *testing.T) {
	router := newWorkflowRouter(t)
	sess := createSession(t, router)

	rec := postJSON(t, router, "/workflow/sessions/"+sess.ID+"/advance", map[string]interface{}{
		"step": "teleport",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflowUnknownSession(t *testing.T) {
	router := newWorkflowRouter(t)

	rec := postJSON(t, router, "/workflow/sessions/ghost/advance", map[string]interface{}{
		"step": "upload_data",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
