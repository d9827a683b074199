package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/store"
)

type SystemHandler struct {
	snapshots *store.SnapshotStore // optional
	publisher *queue.Publisher     // optional
}

func NewSystemHandler(snapshots *store.SnapshotStore, publisher *queue.Publisher) *SystemHandler {
	return &SystemHandler{snapshots: snapshots, publisher: publisher}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the optional backends. Unconfigured backends are
// reported as skipped, not failed; local disk needs no probe.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.snapshots != nil {
		if err := h.snapshots.Ping(ctx); err != nil {
			checks["minio"] = err.Error()
			healthy = false
		} else {
			checks["minio"] = "ok"
		}
	} else {
		checks["minio"] = "skipped"
	}

	if h.publisher != nil {
		if err := h.publisher.Ping(); err != nil {
			checks["nats"] = err.Error()
			healthy = false
		} else {
			checks["nats"] = "ok"
		}
	} else {
		checks["nats"] = "skipped"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
