package handler

import (
	"net/http"

	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type TemplateLinkHandler struct {
	service AutomationService
}

func NewTemplateLinkHandler(service AutomationService) *TemplateLinkHandler {
	return &TemplateLinkHandler{service: service}
}

func (h *TemplateLinkHandler) List(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	partitionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	links, err := h.service.ListLinks(c.Request.Context(), org, partitionID, c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"template_links": links}))
}

func (h *TemplateLinkHandler) Create(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	partitionID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.TemplateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	link := req.ToDomain()
	if err := h.service.CreateLink(c.Request.Context(), org, partitionID, &link); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(link))
}

func (h *TemplateLinkHandler) Get(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	link, err := h.service.GetLink(c.Request.Context(), org, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(link))
}

func (h *TemplateLinkHandler) Update(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.TemplateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	link := req.ToDomain()
	link.ID = id
	updated, err := h.service.UpdateLink(c.Request.Context(), org, link)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(updated))
}

func (h *TemplateLinkHandler) Delete(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteLink(c.Request.Context(), org, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Send performs a manual send of the link to the listed records.
func (h *TemplateLinkHandler) Send(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.ManualSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "record_ids is required")
		return
	}
	res, err := h.service.SendManual(c.Request.Context(), org, id, req.RecordIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

// Tokens lists the tokens of a draft template for editors.
func (h *TemplateLinkHandler) Tokens(c *gin.Context) {
	var req httpdto.TemplateTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(services.InspectTemplate(req.Subject, req.Content, req.VariableMappings)))
}
