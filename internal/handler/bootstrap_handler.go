package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-api/internal/service"
	"github.com/noah-isme/escola-api/pkg/response"
)

// BootstrapHandler exposes the one-shot initialization endpoint.
type BootstrapHandler struct {
	service *service.BootstrapService
}

// NewBootstrapHandler creates a new handler.
func NewBootstrapHandler(svc *service.BootstrapService) *BootstrapHandler {
	return &BootstrapHandler{service: svc}
}

// Initialize godoc
// @Summary Initialize database
// @Description Create missing tables and seed the administrator account
// @Tags Bootstrap
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /init [post]
func (h *BootstrapHandler) Initialize(c *gin.Context) {
	result, err := h.service.Initialize(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
