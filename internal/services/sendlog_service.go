package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/repository"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxExportRows bounds a single CSV export.
const maxExportRows = 50000

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

type SendLogService struct {
	logs  repository.SendLogRepository
	store ObjectStore
	log   *zap.Logger
	clock func() time.Time
}

// NewSendLogService builds the read side of the send log. store may be nil, which disables
// exports.
func NewSendLogService(logs repository.SendLogRepository, store ObjectStore, log *zap.Logger) *SendLogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendLogService{logs: logs, store: store, log: log, clock: time.Now}
}

type SendLogPage struct {
	Items    []sendlog.SendLog `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (s *SendLogService) List(ctx context.Context, f sendlog.Filter) (SendLogPage, error) {
	if f.OrgID == uuid.Nil {
		return SendLogPage{}, crm_errors.ErrUnauthorized
	}
	f.Normalize()
	items, total, err := s.logs.List(ctx, f)
	if err != nil {
		return SendLogPage{}, err
	}
	return SendLogPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *SendLogService) Get(ctx context.Context, orgID, id uuid.UUID) (sendlog.SendLog, error) {
	l, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return sendlog.SendLog{}, err
	}
	if l.OrgID != orgID {
		return sendlog.SendLog{}, crm_errors.ErrNotFound
	}
	return l, nil
}

// Stats aggregates outcomes in [from, to). A zero window means the last 30 days.
func (s *SendLogService) Stats(ctx context.Context, orgID uuid.UUID, from, to time.Time) (sendlog.Stats, error) {
	if to.IsZero() {
		to = s.clock().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return sendlog.Stats{}, fmt.Errorf("%w: from must be before to", crm_errors.ErrInvalidInput)
	}
	rows, err := s.logs.Stats(ctx, orgID, from, to)
	if err != nil {
		return sendlog.Stats{}, err
	}
	return sendlog.Summarize(rows), nil
}

type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Rows      int       `json:"rows"`
	Truncated bool      `json:"truncated"`
}

var exportHeader = []string{
	"id", "created_at", "sent_at", "partition_id", "template_link_id", "record_id",
	"occurrence_index", "channel", "recipient", "status", "provider_result_code", "provider_message",
}

// Export writes every log matching the filter to a CSV object and returns a download link.
func (s *SendLogService) Export(ctx context.Context, f sendlog.Filter) (ExportResult, error) {
	if s.store == nil {
		return ExportResult{}, crm_errors.ErrServiceUnavailable
	}
	if f.OrgID == uuid.Nil {
		return ExportResult{}, crm_errors.ErrUnauthorized
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return ExportResult{}, err
	}

	var res ExportResult
	f.PageSize = 100
	for f.Page = 1; ; f.Page++ {
		items, total, err := s.logs.List(ctx, f)
		if err != nil {
			return ExportResult{}, fmt.Errorf("read send logs page %d: %w", f.Page, err)
		}
		for _, l := range items {
			if res.Rows == maxExportRows {
				res.Truncated = true
				break
			}
			if err := w.Write(exportRow(l)); err != nil {
				return ExportResult{}, err
			}
			res.Rows++
		}
		if res.Truncated || len(items) < f.PageSize || int64(f.Page*f.PageSize) >= total {
			break
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ExportResult{}, err
	}

	now := s.clock().UTC()
	res.Key = fmt.Sprintf("exports/%s/send-logs-%s-%s.csv", f.OrgID, now.Format("20060102T150405Z"), uuid.NewString()[:8])
	if err := s.store.Put(ctx, res.Key, "text/csv", buf.Bytes()); err != nil {
		return ExportResult{}, err
	}
	url, expires, err := s.store.PresignGet(ctx, res.Key)
	if err != nil {
		return ExportResult{}, err
	}
	res.URL = url
	res.ExpiresAt = expires

	s.log.Info("send logs exported",
		zap.String("org_id", f.OrgID.String()),
		zap.String("key", res.Key),
		zap.Int("rows", res.Rows),
		zap.Bool("truncated", res.Truncated),
	)
	return res, nil
}

func exportRow(l sendlog.SendLog) []string {
	sentAt := ""
	if l.SentAt != nil {
		sentAt = l.SentAt.UTC().Format(time.RFC3339)
	}
	return []string{
		l.ID.String(),
		l.CreatedAt.UTC().Format(time.RFC3339),
		sentAt,
		l.PartitionID.String(),
		l.TemplateLinkID.String(),
		l.RecordID.String(),
		strconv.Itoa(l.OccurrenceIndex),
		l.Channel,
		l.Recipient,
		string(l.Status),
		l.ProviderResultCode,
		l.ProviderMessage,
	}
}
