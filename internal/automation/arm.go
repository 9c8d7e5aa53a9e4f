package automation

import (
	"context"
	"errors"
	"fmt"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/repository"

	"github.com/google/uuid"
)

// ChainQueue is the part of the queue used when a trigger decision is armed.
type ChainQueue interface {
	Enqueue(ctx context.Context, tx repository.DBTX, e *automation.QueueEntry) (bool, error)
	HasLiveChain(ctx context.Context, linkID, recordID uuid.UUID) (bool, error)
	Reschedule(ctx context.Context, e *automation.QueueEntry) (bool, error)
}

// ArmResult counts what Arm did with a decision's occurrences.
type ArmResult struct {
	Queued  int
	Failed  int
	Running bool
}

// Arm queues the occurrences of a decision for one record.
//
// A scheduled link replaces the record's pending entry, so a moved base date moves the send.
// A repeat link starts a chain only when the record has no pending or processing entry for the
// link; a finished or cancelled chain starts again from occurrence 0.
func Arm(ctx context.Context, q ChainQueue, link automation.TemplateLink, recordID uuid.UUID, occurrences []Occurrence) (ArmResult, error) {
	var res ArmResult
	if len(occurrences) == 0 {
		return res, nil
	}
	if link.TriggerType == automation.TriggerRepeat {
		live, err := q.HasLiveChain(ctx, link.ID, recordID)
		if err != nil {
			res.Failed = len(occurrences)
			return res, fmt.Errorf("check running chain: %w", err)
		}
		if live {
			res.Running = true
			return res, nil
		}
	}

	var errs []error
	for _, occ := range occurrences {
		entry := automation.NewQueueEntry(link.ID, recordID, occ.Index, occ.At)
		var (
			inserted bool
			err      error
		)
		if link.TriggerType == automation.TriggerScheduled {
			inserted, err = q.Reschedule(ctx, &entry)
		} else {
			inserted, err = q.Enqueue(ctx, nil, &entry)
		}
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("enqueue occurrence %d: %w", occ.Index, err))
			continue
		}
		if inserted {
			res.Queued++
		}
	}
	return res, errors.Join(errs...)
}
