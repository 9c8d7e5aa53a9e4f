package handler

import (
	"net/http"

	"crm-messaging/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	automation   AutomationService
	distribution DistributionService
}

func NewRecordHandler(automation AutomationService, distribution DistributionService) *RecordHandler {
	return &RecordHandler{automation: automation, distribution: distribution}
}

// PostEvent receives a committed record mutation.
func (h *RecordHandler) PostEvent(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	var req httpdto.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	out, err := h.automation.HandleRecordEvent(c.Request.Context(), req.ToEvent(org))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *RecordHandler) AssignDistribution(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	partitionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	a, err := h.distribution.Assign(c.Request.Context(), org, partitionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if a == nil {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AssignResponse{Assigned: false}))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AssignResponse{
		Assigned: true,
		Order:    a.Order,
		Defaults: a.Defaults,
	}))
}
