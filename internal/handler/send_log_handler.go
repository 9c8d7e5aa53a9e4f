package handler

import (
	"net/http"

	"crm-messaging/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type SendLogHandler struct {
	service SendLogService
}

func NewSendLogHandler(service SendLogService) *SendLogHandler {
	return &SendLogHandler{service: service}
}

func (h *SendLogHandler) List(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	var q httpdto.SendLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	f, err := q.ToFilter(org)
	if err != nil {
		badRequest(c, "invalid id filter")
		return
	}
	page, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *SendLogHandler) Get(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	l, err := h.service.Get(c.Request.Context(), org, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(l))
}

func (h *SendLogHandler) Stats(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	var q httpdto.StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	st, err := h.service.Stats(c.Request.Context(), org, q.From, q.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(st))
}

func (h *SendLogHandler) Export(c *gin.Context) {
	org, ok := orgID(c)
	if !ok {
		return
	}
	var q httpdto.SendLogQuery
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&q); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	f, err := q.ToFilter(org)
	if err != nil {
		badRequest(c, "invalid id filter")
		return
	}
	res, err := h.service.Export(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
