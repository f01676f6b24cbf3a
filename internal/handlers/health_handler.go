package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// JobStatusReporter describes the scheduled background jobs
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	db      Pinger
	jobs    JobStatusReporter
	version string
}

// NewHealthHandler creates a health handler. jobs may be nil when cron is disabled.
func NewHealthHandler(db Pinger, jobs JobStatusReporter, version string) *HealthHandler {
	return &HealthHandler{db: db, jobs: jobs, version: version}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
			"error":    err.Error(),
		})
		return
	}

	body := gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	}
	if h.jobs != nil {
		body["cron"] = h.jobs.GetJobStatus()
	}

	c.JSON(http.StatusOK, body)
}
