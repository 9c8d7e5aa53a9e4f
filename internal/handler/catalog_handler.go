package handler

import (
	"net/http"
	"strconv"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/provider"
	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	service CatalogService
}

func NewCatalogHandler(service CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// List serves GET /v1/providers/:channel/:kind.
func (h *CatalogHandler) List(c *gin.Context) {
	pageNum, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "15"))

	out, err := h.service.List(c.Request.Context(),
		automation.Channel(c.Param("channel")),
		services.CatalogKind(c.Param("kind")),
		provider.Page{PageNum: pageNum, PageSize: pageSize},
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
