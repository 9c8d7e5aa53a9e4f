package handler

import (
	"net/http"

	"crm-messaging/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// SweepHandler lets an external scheduler trigger one queue sweep.
type SweepHandler struct {
	sweeper Sweeper
}

func NewSweepHandler(sweeper Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

func (h *SweepHandler) Sweep(c *gin.Context) {
	stats, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}
