package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/internal/store"
	"github.com/your-org/attend/pkg/dto"
)

type EventHandler struct {
	svc       *service.Service
	snapshots *store.SnapshotStore // nil when object storage is not configured
}

func NewEventHandler(svc *service.Service, snapshots *store.SnapshotStore) *EventHandler {
	return &EventHandler{svc: svc, snapshots: snapshots}
}

// List returns the rows of one (group, day) partition. The date
// defaults to today, the group to the configured default.
func (h *EventHandler) List(c *gin.Context) {
	group := c.Query("group")
	if group == "" {
		group = h.svc.Settings().DefaultGroup
	}
	dateLabel := c.Query("date")
	if dateLabel == "" {
		dateLabel = store.DateLabel(time.Now())
	}

	events, err := h.svc.Events(group, dateLabel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttendanceEvent, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dto.AttendanceEvent{
			Timestamp:  ev.Timestamp.Format("2006-01-02 15:04:05"),
			DateLabel:  ev.DateLabel,
			Group:      ev.Group,
			IdentityID: ev.IdentityID,
			Name:       ev.Name,
			Similarity: ev.Similarity,
		})
	}

	c.JSON(http.StatusOK, dto.AttendanceEventListResponse{Events: resp, Total: len(resp)})
}

// Partitions lists the log partition files present on disk.
func (h *EventHandler) Partitions(c *gin.Context) {
	parts, err := h.svc.Partitions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partitions": parts, "total": len(parts)})
}

// Snapshot serves an archived face crop by object key.
func (h *EventHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "snapshot storage not configured"})
		return
	}

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key"})
		return
	}

	data, err := h.snapshots.GetSnapshot(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}
