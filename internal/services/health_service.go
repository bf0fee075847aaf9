package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"stickforstats/internal/audit"
	"stickforstats/internal/config"
	"stickforstats/internal/operations"
	"stickforstats/internal/websocket"
	"stickforstats/internal/workflow"
)

// HealthService reports liveness, readiness, and version information for
// the health endpoints.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     config.PathsConfig
	audits    audit.Store
	queue     *operations.JobQueue
	hub       *websocket.Hub
	sessions  *workflow.Store
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the response body shared by the health endpoints.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is the readiness verdict for one dependency.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version, buildTime, buildID string, paths config.PathsConfig, audits audit.Store, queue *operations.JobQueue, hub *websocket.Hub, sessions *workflow.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		audits:    audits,
		queue:     queue,
		hub:       hub,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "services.health")),
	}
}

// HealthCheck returns the overall health status.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck probes each dependency and reports per-service status.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["audit"] = hs.checkAuditHealth(ctx)
	status.Services["operations"] = hs.checkOperationsHealth()
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["workflow"] = hs.checkWorkflowHealth()
	status.Services["data"] = hs.checkDataHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck reports process liveness and runtime stats.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns build and runtime version information.
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	return result
}

// checkAuditHealth runs a cheap aggregate query against the store.
func (hs *HealthService) checkAuditHealth(ctx context.Context) ServiceHealth {
	if hs.audits == nil {
		return ServiceHealth{Status: "not_ready", Message: "audit store not initialized"}
	}
	now := time.Now().UTC()
	if _, err := hs.audits.Summarize(ctx, now.Add(-time.Minute), now); err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("audit store error: %v", err)}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkOperationsHealth() ServiceHealth {
	if hs.queue == nil {
		return ServiceHealth{Status: "not_ready", Message: "job queue not initialized"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "not_ready", Message: "websocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
	}
}

func (hs *HealthService) checkWorkflowHealth() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "workflow store not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d active sessions", hs.sessions.Len()),
	}
}

// checkDataHealth verifies the data directory exists and is writable.
func (hs *HealthService) checkDataHealth() ServiceHealth {
	dataDir := hs.paths.DataDir
	if dataDir == "" {
		return ServiceHealth{Status: "ready", Message: "no data directory configured"}
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("data directory not found: %s", dataDir)}
	}

	probe := filepath.Join(dataDir, ".health_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("data directory not writable: %v", err)}
	}
	os.Remove(probe)

	return ServiceHealth{Status: "ready"}
}
