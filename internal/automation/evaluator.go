package automation

import (
	"strings"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
)

// Skip reasons reported by Evaluate.
const (
	ReasonInactive        = "link inactive"
	ReasonEventMismatch   = "event kind not listened to"
	ReasonManual          = "manual trigger"
	ReasonConditionFalse  = "condition not met"
	ReasonBadCondition    = "invalid condition"
	ReasonNoRecipient     = "recipient field empty"
	ReasonBadBaseDate     = "schedule base field is not a date"
	ReasonMissingSchedule = "schedule config missing"
	ReasonMissingRepeat   = "repeat config missing"
)

// Occurrence is one queue entry the evaluator wants created.
type Occurrence struct {
	Index int
	At    time.Time
}

// Decision is the outcome of evaluating one link against one record event.
// Fire means send now; Occurrences are queued for the sweep.
type Decision struct {
	Fire        bool
	Occurrences []Occurrence
	Reason      string
}

// Matched reports whether the decision produces any work.
func (d Decision) Matched() bool {
	return d.Fire || len(d.Occurrences) > 0
}

// Evaluate decides what a record event means for one template link. It never errors:
// configuration problems are skips with a reason.
func Evaluate(link automation.TemplateLink, rec record.Record, kind record.EventKind, now time.Time) Decision {
	if !link.IsActive {
		return Decision{Reason: ReasonInactive}
	}
	if link.TriggerType == automation.TriggerManual {
		return Decision{Reason: ReasonManual}
	}
	if !link.ListensTo(kind) {
		return Decision{Reason: ReasonEventMismatch}
	}
	if ok, reason := conditionHolds(link, rec); !ok {
		return Decision{Reason: reason}
	}
	if Recipient(link, rec) == "" {
		return Decision{Reason: ReasonNoRecipient}
	}

	now = now.UTC()
	switch link.TriggerType {
	case automation.TriggerImmediate:
		return Decision{Fire: true}

	case automation.TriggerScheduled:
		if link.ScheduleConfig == nil {
			return Decision{Reason: ReasonMissingSchedule}
		}
		at, ok := scheduledAt(*link.ScheduleConfig, rec, now)
		if !ok {
			return Decision{Reason: ReasonBadBaseDate}
		}
		return Decision{Occurrences: []Occurrence{{Index: 0, At: at}}}

	case automation.TriggerRepeat:
		if link.RepeatConfig == nil {
			return Decision{Reason: ReasonMissingRepeat}
		}
		occ := []Occurrence{{Index: 0, At: now}}
		if link.RepeatConfig.HasNext(0) {
			occ = append(occ, Occurrence{Index: 1, At: link.RepeatConfig.Next(now)})
		}
		return Decision{Occurrences: occ}
	}
	return Decision{Reason: ReasonManual}
}

// Recipient returns the trimmed destination for a record, or "".
func Recipient(link automation.TemplateLink, rec record.Record) string {
	return strings.TrimSpace(rec.Field(link.RecipientField))
}

func conditionHolds(link automation.TemplateLink, rec record.Record) (bool, string) {
	if link.TriggerCondition == nil {
		return true, ""
	}
	cond, err := link.TriggerCondition.Compile()
	if err != nil {
		return false, ReasonBadCondition
	}
	if !cond.Eval(rec.Data) {
		return false, ReasonConditionFalse
	}
	return true, ""
}

// scheduledAt computes base + offset. A time already in the past is due now.
func scheduledAt(cfg automation.ScheduleConfig, rec record.Record, now time.Time) (time.Time, bool) {
	base := now
	if cfg.BaseField != "" {
		t, ok := automation.ParseTime(rec.Field(cfg.BaseField))
		if !ok {
			return time.Time{}, false
		}
		base = t.UTC()
	}
	at := base.Add(time.Duration(cfg.OffsetMinutes) * time.Minute)
	if at.Before(now) {
		at = now
	}
	return at, true
}
