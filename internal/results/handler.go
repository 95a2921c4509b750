package results

import (
	"github.com/gin-gonic/gin"

	"github.com/livepoll/backend/pkg/response"
)

// Handler handles result HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a results handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /sessions/:id/results.
func (h *Handler) Get(c *gin.Context) {
	res, err := h.service.SessionResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Voters handles GET /sessions/:id/voters.
func (h *Handler) Voters(c *gin.Context) {
	list, err := h.service.Voters(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"voters": list})
}
