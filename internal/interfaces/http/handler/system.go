package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/scheduler"
	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"github.com/billingwatch/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StorePinger reports whether the shared store is reachable
type StorePinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus reports the check scheduler's state
type SchedulerStatus interface {
	Stats() scheduler.Stats
}

// healthCheckTimeout bounds the store ping done by the health endpoint
const healthCheckTimeout = 2 * time.Second

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	startTime time.Time
	store     StorePinger
	scheduler SchedulerStatus
	logger    *zap.Logger
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name string, store StorePinger, sched SchedulerStatus, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{
		name:      name,
		startTime: time.Now(),
		store:     store,
		scheduler: sched,
		logger:    logger,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   telemetry.ServiceVersion,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a liveness check
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthResponse reports readiness of the worker's dependencies
type HealthResponse struct {
	Status    string          `json:"status"`
	Store     string          `json:"store"`
	Scheduler SchedulerHealth `json:"scheduler"`
}

// SchedulerHealth is the scheduler part of HealthResponse
type SchedulerHealth struct {
	Running   bool  `json:"running"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Health is a readiness check: 200 when the store answers and the scheduler
// accepts jobs, 503 otherwise. The body is returned in both cases.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Store: "ok"}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("Shared store health check failed", zap.Error(err))
			resp.Store = "unreachable"
			resp.Status = "degraded"
		}
	}

	if h.scheduler != nil {
		stats := h.scheduler.Stats()
		resp.Scheduler = SchedulerHealth{
			Running:   stats.Running,
			Queued:    stats.Queued,
			Submitted: stats.Submitted,
			Succeeded: stats.Succeeded,
			Failed:    stats.Failed,
		}
		if !resp.Scheduler.Running {
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}
