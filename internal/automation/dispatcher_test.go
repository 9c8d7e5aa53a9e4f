package automation

import (
	"context"
	"fmt"
	"testing"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_SettlesPendingLog(t *testing.T) {
	logs := newMemoryLogs()
	sender := &scriptedSender{channel: automation.ChannelEmail, result: provider.SendResult{OK: true, Code: "0"}}
	d := NewDispatcher(logs, senderMap{automation.ChannelEmail: sender}, nil)

	link := baseLink(automation.TriggerImmediate)
	link.Channel = automation.ChannelEmail
	link.RecipientField = "email"
	link.Subject = "Hi ##NAME##"
	link.VariableMappings = []automation.VariableMapping{{Token: "##NAME##", Field: "name"}}
	rec := baseRecord(map[string]any{"email": "kim@example.com", "name": "Kim"})

	l, err := d.Dispatch(context.Background(), link, rec)
	require.NoError(t, err)
	assert.Equal(t, sendlog.StatusSent, l.Status)
	assert.NotNil(t, l.SentAt)
	assert.False(t, l.QueueEntryID.Valid)

	stored, err := logs.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, sendlog.StatusSent, stored.Status)
	assert.Equal(t, "Hi Kim", sender.sent[0].Subject)
	assert.Equal(t, "Hello Kim", sender.sent[0].Content)
}

func TestDispatch_TransportFailure(t *testing.T) {
	logs := newMemoryLogs()
	sender := &scriptedSender{channel: automation.ChannelAlimtalk, err: fmt.Errorf("dial: %w", provider.ErrTransport)}
	d := NewDispatcher(logs, senderMap{automation.ChannelAlimtalk: sender}, nil)

	l, err := d.Dispatch(context.Background(), baseLink(automation.TriggerManual), baseRecord(map[string]any{"phone": "010"}))
	require.NoError(t, err)
	assert.Equal(t, sendlog.StatusFailed, l.Status)
	assert.Equal(t, sendlog.CodeTransportError, l.ProviderResultCode)
	assert.Nil(t, l.SentAt)
}

func TestDispatch_NoRecipientIsSkip(t *testing.T) {
	logs := newMemoryLogs()
	sender := &scriptedSender{channel: automation.ChannelAlimtalk}
	d := NewDispatcher(logs, senderMap{automation.ChannelAlimtalk: sender}, nil)

	_, err := d.Dispatch(context.Background(), baseLink(automation.TriggerImmediate), baseRecord(map[string]any{}))
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, logs.all())
	assert.Zero(t, sender.count())
}
