package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickforstats/internal/audit"
	"stickforstats/internal/config"
	"stickforstats/internal/operations"
	"stickforstats/internal/websocket"
	"stickforstats/internal/workflow"
)

func newHealthService(t *testing.T) *HealthService {
	t.Helper()

	store, err := audit.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	queue := operations.NewJobQueue(1, operations.NewMemoryJobStore(), discardLogger())
	hub := websocket.NewHub(discardLogger())
	sessions := workflow.NewStore(time.Minute, discardLogger())
	paths := config.PathsConfig{DataDir: t.TempDir()}

	return NewHealthService("1.0.0", "", "", paths, store, queue, hub, sessions, discardLogger())
}

func TestHealthCheck(t *testing.T) {
	hs := newHealthService(t)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestReadinessCheckAllReady(t *testing.T) {
	hs := newHealthService(t)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)
	for name, svc := range status.Services {
		sh, ok := svc.(ServiceHealth)
		require.True(t, ok, name)
		assert.Equal(t, "ready", sh.Status, name)
	}
}

func TestReadinessCheckMissingDependencies(t *testing.T) {
	hs := NewHealthService("1.0.0", "", "", config.PathsConfig{}, nil, nil, nil, nil, discardLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	sh := status.Services["audit"].(ServiceHealth)
	assert.Equal(t, "not_ready", sh.Status)
}

func TestReadinessCheckBadDataDir(t *testing.T) {
	hs := newHealthService(t)
	hs.paths.DataDir = "/nonexistent/path/for/sure"

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
}

func TestLivenessCheck(t *testing.T) {
	hs := newHealthService(t)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestVersionInfo(t *testing.T) {
	hs := NewHealthService("2.1.0", "2026-01-02T00:00:00Z", "abc123", config.PathsConfig{}, nil, nil, nil, nil, discardLogger())

	info := hs.Version()
	assert.Equal(t, "2.1.0", info["version"])
	assert.Equal(t, "2026-01-02T00:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["build_id"])
	assert.Contains(t, info, "go_version")
}
