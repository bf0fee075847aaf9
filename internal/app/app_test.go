package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/config"
)

var (
	testAppOnce sync.Once
	testApp     *Application
	testAppErr  error
	testAppDir  string
)

// TestMain cleans up the shared application's data directory, which must
// outlive the individual test that happened to build the application.
func TestMain(m *testing.M) {
	code := m.Run()
	if testAppDir != "" {
		os.RemoveAll(testAppDir)
	}
	os.Exit(code)
}

// testApplication builds a single shared application. The OpenTelemetry
// prometheus exporter registers collectors process-wide, so the wiring
// can only run once per test binary.
func testApplication(t *testing.T) *Application {
	t.Helper()
	testAppOnce.Do(func() {
		cfg := config.Default()
		cfg.Paths.AuditDBPath = ":memory:"
		testAppDir, testAppErr = os.MkdirTemp("", "stickforstats-app-test")
		if testAppErr != nil {
			return
		}
		cfg.Paths.DataDir = testAppDir
		cfg.Paths.ExportDir = cfg.Paths.DataDir
		cfg.Paths.LogsDir = cfg.Paths.DataDir
		cfg.Security.RateLimit.Enabled = false
		cfg.Operations.Workers = 1
		cfg.Operations.BackoffBase = time.Millisecond

		testApp, testAppErr = NewApplicationWithConfig(cfg)
	})
	require.NoError(t, testAppErr)
	return testApp
}

func doJSON(t *testing.T, app *Application, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplicationWiring(t *testing.T) {
	app := testApplication(t)

	assert.NotNil(t, app.Config)
	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.AuditStore)
	assert.NotNil(t, app.Checker)
	assert.NotNil(t, app.StatsService)
	assert.NotNil(t, app.AuditService)
	assert.NotNil(t, app.OperationsService)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.WebSocketHub)
	assert.NotNil(t, app.JobQueue)
	assert.NotNil(t, app.WorkflowStore)
	assert.Equal(t, ":8080", app.Server.Addr)
}

func TestHealthEndpoints(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = doJSON(t, app, http.MethodGet, "/api/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, app, http.MethodGet, "/api/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, app, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), VERSION)
}

func TestAnalysisRoundTrip(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodPost, "/api/v1/stats/descriptive", map[string]interface{}{
		"data": []float64{2.1, 3.4, 2.8, 3.9, 3.1, 2.5, 3.6, 2.9, 3.3, 2.7},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"audit_id"`)

	// The analysis above must be visible in the audit trail.
	rec = doJSON(t, app, http.MethodGet, "/api/v1/audit/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"descriptive"`)
}

func TestGuardianEndpoint(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodPost, "/api/guardian/check", map[string]interface{}{
		"test":   "one_sample_t",
		"groups": [][]float64{{2.1, 3.4, 2.8, 3.9, 3.1, 2.5, 3.6, 2.9, 3.3, 2.7}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"all_passed"`)
}

func TestWorkflowLifecycle(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodPost, "/api/v1/workflow/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data.ID)

	rec = doJSON(t, app, http.MethodGet, "/api/v1/workflow/sessions/"+env.Data.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"start"`)

	rec = doJSON(t, app, http.MethodDelete, "/api/v1/workflow/sessions/"+env.Data.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationsSubmitAndPoll(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodPost, "/api/v1/operations", map[string]interface{}{
		"kind":    "descriptive",
		"payload": map[string]interface{}{"data": []float64{1, 2, 3, 4, 5, 6, 7, 8}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	require.Eventually(t, func() bool {
		poll := doJSON(t, app, http.MethodGet, "/api/v1/operations/"+env.Data.ID, nil)
		return poll.Code == http.StatusOK &&
			strings.Contains(poll.Body.String(), `"completed"`)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestErrorEnvelope(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodGet, "/api/v1/audit/records/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), "RECORD_NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	app := testApplication(t)

	rec := doJSON(t, app, http.MethodGet, "/api/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWebSocketConnect(t *testing.T) {
	app := testApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The hub greets new clients with a connection event.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "connected")
}

func TestServerShutdown(t *testing.T) {
	app := testApplication(t)

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: app.Router}
	go srv.ListenAndServe()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
