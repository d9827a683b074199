package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/pkg/dto"
)

type AttendanceHandler struct {
	svc *service.Service
}

func NewAttendanceHandler(svc *service.Service) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

func (h *AttendanceHandler) Start(c *gin.Context) {
	var req dto.StartAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.StartAttendance(req.Group); err != nil {
		switch {
		case errors.Is(err, service.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoIdentities):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		case errors.Is(err, recognition.ErrInvalidGroup):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AttendanceHandler) Stop(c *gin.Context) {
	h.svc.StopAttendance()
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AttendanceHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}
