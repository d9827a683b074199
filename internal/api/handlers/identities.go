package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/pkg/dto"
)

type IdentityHandler struct {
	svc *service.Service
}

func NewIdentityHandler(svc *service.Service) *IdentityHandler {
	return &IdentityHandler{svc: svc}
}

func (h *IdentityHandler) List(c *gin.Context) {
	infos := h.svc.Identities()

	resp := make([]dto.IdentityResponse, 0, len(infos))
	for _, info := range infos {
		if group := c.Query("group"); group != "" && info.Group != group {
			continue
		}
		resp = append(resp, dto.IdentityResponse{
			ID:          info.ID,
			Name:        info.Name,
			Group:       info.Group,
			SampleCount: info.SampleCount,
		})
	}

	c.JSON(http.StatusOK, dto.IdentityListResponse{Identities: resp, Total: len(resp)})
}

// Delete removes an identity, its historical log rows and its cooldown
// entry. Deleting an unknown identity succeeds; the end state is the
// same.
func (h *IdentityHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.DeleteIdentity(id); err != nil {
		if errors.Is(err, service.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}
