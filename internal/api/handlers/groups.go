package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/internal/store"
	"github.com/your-org/attend/pkg/dto"
)

type GroupHandler struct {
	svc *service.Service
}

func NewGroupHandler(svc *service.Service) *GroupHandler {
	return &GroupHandler{svc: svc}
}

func (h *GroupHandler) List(c *gin.Context) {
	st := h.svc.Settings()
	c.JSON(http.StatusOK, dto.GroupListResponse{
		Groups:       st.Groups,
		DefaultGroup: st.DefaultGroup,
	})
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.svc.AddGroup(req.Name)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.GroupListResponse{
		Groups:       st.Groups,
		DefaultGroup: st.DefaultGroup,
	})
}

func (h *GroupHandler) Delete(c *gin.Context) {
	name := c.Param("name")

	st, err := h.svc.DeleteGroup(name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrGroupProtected), errors.Is(err, service.ErrGroupInUse):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, dto.GroupListResponse{
		Groups:       st.Groups,
		DefaultGroup: st.DefaultGroup,
	})
}
