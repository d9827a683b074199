package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/pkg/dto"
)

type EnrollmentHandler struct {
	svc *service.Service
}

func NewEnrollmentHandler(svc *service.Service) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc}
}

func (h *EnrollmentHandler) Start(c *gin.Context) {
	var req dto.StartEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	progress, err := h.svc.StartEnrollment(req.IdentityID, req.Name, req.Group)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, recognition.ErrDuplicateIdentity):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, recognition.ErrInvalidGroup):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, progress)
}

// Stop ends collection early. A session holding fewer than the minimum
// samples aborts; the client gets the final state either way.
func (h *EnrollmentHandler) Stop(c *gin.Context) {
	progress, err := h.svc.StopEnrollment()
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnrolling):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, recognition.ErrInsufficientSamples):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "session": progress})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "session": progress})
		}
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	if err := h.svc.CancelEnrollment(); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *EnrollmentHandler) Status(c *gin.Context) {
	progress, err := h.svc.EnrollmentStatus()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}
