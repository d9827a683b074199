package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/service"
)

type SettingsHandler struct {
	svc *service.Service
}

func NewSettingsHandler(svc *service.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Settings())
}

// Update replaces the runtime settings document. Out-of-range values
// are silently replaced with defaults; the response carries what was
// actually persisted.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req config.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.svc.UpdateSettings(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, st)
}
