package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

const templateLinkColumns = `id, org_id, partition_id, channel, template_ref, subject, content, recipient_field,
        variable_mappings, trigger_type, trigger_events, trigger_condition, schedule_config, repeat_config,
        is_active, created_at, updated_at`

type templateLinkRepository struct {
	db DBTX
}

func NewTemplateLinkRepository(db DBTX) TemplateLinkRepository {
	return &templateLinkRepository{db: db}
}

func (r *templateLinkRepository) Create(ctx context.Context, l *automation.TemplateLink) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	args, err := templateLinkArgs(l)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO template_links (`+templateLinkColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
    `, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return crm_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *templateLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (automation.TemplateLink, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+templateLinkColumns+`
        FROM template_links
        WHERE id = $1
    `, id)
	l, err := scanTemplateLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return automation.TemplateLink{}, crm_errors.ErrNotFound
		}
		return automation.TemplateLink{}, err
	}
	return l, nil
}

func (r *templateLinkRepository) Update(ctx context.Context, l automation.TemplateLink) error {
	mappings, err := json.Marshal(l.VariableMappings)
	if err != nil {
		return err
	}
	events, err := json.Marshal(l.TriggerEvents)
	if err != nil {
		return err
	}
	condition, err := jsonColumn(l.TriggerCondition)
	if err != nil {
		return err
	}
	schedule, err := jsonColumn(l.ScheduleConfig)
	if err != nil {
		return err
	}
	repeat, err := jsonColumn(l.RepeatConfig)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
        UPDATE template_links
        SET channel = $1, template_ref = $2, subject = $3, content = $4, recipient_field = $5,
            variable_mappings = $6, trigger_type = $7, trigger_events = $8, trigger_condition = $9,
            schedule_config = $10, repeat_config = $11, is_active = $12, updated_at = $13
        WHERE id = $14
    `,
		l.Channel, l.TemplateRef, l.Subject, l.Content, l.RecipientField,
		mappings, l.TriggerType, events, condition,
		schedule, repeat, l.IsActive, time.Now().UTC(),
		l.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm_errors.ErrNotFound
	}
	return nil
}

func (r *templateLinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM template_links WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm_errors.ErrNotFound
	}
	return nil
}

func (r *templateLinkRepository) ListByPartition(ctx context.Context, partitionID uuid.UUID, activeOnly bool) ([]automation.TemplateLink, error) {
	query := `
        SELECT ` + templateLinkColumns + `
        FROM template_links
        WHERE partition_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, partitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []automation.TemplateLink
	for rows.Next() {
		l, err := scanTemplateLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplateLink(row rowScanner) (automation.TemplateLink, error) {
	var (
		l                           automation.TemplateLink
		mappings, events            []byte
		condition, schedule, repeat []byte
	)
	if err := row.Scan(
		&l.ID,
		&l.OrgID,
		&l.PartitionID,
		&l.Channel,
		&l.TemplateRef,
		&l.Subject,
		&l.Content,
		&l.RecipientField,
		&mappings,
		&l.TriggerType,
		&events,
		&condition,
		&schedule,
		&repeat,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return automation.TemplateLink{}, err
	}

	if len(mappings) > 0 {
		if err := json.Unmarshal(mappings, &l.VariableMappings); err != nil {
			return automation.TemplateLink{}, fmt.Errorf("decode variable_mappings: %w", err)
		}
	}
	if len(events) > 0 {
		var kinds []record.EventKind
		if err := json.Unmarshal(events, &kinds); err != nil {
			return automation.TemplateLink{}, fmt.Errorf("decode trigger_events: %w", err)
		}
		l.TriggerEvents = kinds
	}
	if len(condition) > 0 {
		l.TriggerCondition = &automation.ConditionSpec{}
		if err := json.Unmarshal(condition, l.TriggerCondition); err != nil {
			return automation.TemplateLink{}, fmt.Errorf("decode trigger_condition: %w", err)
		}
	}
	if len(schedule) > 0 {
		l.ScheduleConfig = &automation.ScheduleConfig{}
		if err := json.Unmarshal(schedule, l.ScheduleConfig); err != nil {
			return automation.TemplateLink{}, fmt.Errorf("decode schedule_config: %w", err)
		}
	}
	if len(repeat) > 0 {
		l.RepeatConfig = &automation.RepeatConfig{}
		if err := json.Unmarshal(repeat, l.RepeatConfig); err != nil {
			return automation.TemplateLink{}, fmt.Errorf("decode repeat_config: %w", err)
		}
	}
	return l, nil
}

func templateLinkArgs(l *automation.TemplateLink) ([]any, error) {
	mappings, err := json.Marshal(l.VariableMappings)
	if err != nil {
		return nil, err
	}
	if l.VariableMappings == nil {
		mappings = []byte("[]")
	}
	events, err := json.Marshal(l.TriggerEvents)
	if err != nil {
		return nil, err
	}
	if l.TriggerEvents == nil {
		events = []byte("[]")
	}
	condition, err := jsonColumn(l.TriggerCondition)
	if err != nil {
		return nil, err
	}
	schedule, err := jsonColumn(l.ScheduleConfig)
	if err != nil {
		return nil, err
	}
	repeat, err := jsonColumn(l.RepeatConfig)
	if err != nil {
		return nil, err
	}
	return []any{
		l.ID,
		l.OrgID,
		l.PartitionID,
		l.Channel,
		l.TemplateRef,
		l.Subject,
		l.Content,
		l.RecipientField,
		mappings,
		l.TriggerType,
		events,
		condition,
		schedule,
		repeat,
		l.IsActive,
		l.CreatedAt,
		l.UpdatedAt,
	}, nil
}
