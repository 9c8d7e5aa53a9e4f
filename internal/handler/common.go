package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crm-messaging/internal/automation"
	"crm-messaging/internal/distribution"
	domain "crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/partition"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/provider"
	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"
	"crm-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AutomationService interface {
	HandleRecordEvent(ctx context.Context, ev record.MutationEvent) (services.EventOutcome, error)
	SendManual(ctx context.Context, orgID, linkID uuid.UUID, recordIDs []uuid.UUID) (services.ManualSendResult, error)
	CreateLink(ctx context.Context, orgID, partitionID uuid.UUID, link *domain.TemplateLink) error
	GetLink(ctx context.Context, orgID, linkID uuid.UUID) (domain.TemplateLink, error)
	ListLinks(ctx context.Context, orgID, partitionID uuid.UUID, activeOnly bool) ([]domain.TemplateLink, error)
	UpdateLink(ctx context.Context, orgID uuid.UUID, link domain.TemplateLink) (domain.TemplateLink, error)
	DeleteLink(ctx context.Context, orgID, linkID uuid.UUID) error
}

type DistributionService interface {
	Assign(ctx context.Context, orgID, partitionID uuid.UUID) (*distribution.Assignment, error)
}

type SendLogService interface {
	List(ctx context.Context, f sendlog.Filter) (services.SendLogPage, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (sendlog.SendLog, error)
	Stats(ctx context.Context, orgID uuid.UUID, from, to time.Time) (sendlog.Stats, error)
	Export(ctx context.Context, f sendlog.Filter) (services.ExportResult, error)
}

type CatalogService interface {
	List(ctx context.Context, channel domain.Channel, kind services.CatalogKind, page provider.Page) (any, error)
}

type PartitionAccess interface {
	CanAccessPartition(ctx context.Context, orgID, partitionID uuid.UUID) (partition.Partition, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (automation.Stats, error)
}

func respondError(c *gin.Context, err error) {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		writeError(c, http.StatusBadGateway, perr.Error(), httpdto.CodeProviderError)
		return
	}
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		// rendered by ErrorHandler with logging
		_ = c.Error(err)
		return
	}
	writeError(c, status, err.Error(), services.ErrorCode(err))
}

func writeError(c *gin.Context, status int, msg string, code httpdto.ErrorCode) {
	c.JSON(status, httpdto.NewErrorResponse(msg, code).WithRequestID(logger.RequestID(c.Request.Context())))
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, http.StatusBadRequest, msg, httpdto.CodeInvalidRequest)
}

// orgID reads the caller's organization set by AuthMiddleware.
func orgID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := services.OrgIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", httpdto.CodeUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
