package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ChangeNotification(t *testing.T) {
	parser := NewParser(testLogger())

	tests := []struct {
		name          string
		resourceState string
		wantEventType string
	}{
		{"add becomes file_created", "add", "file_created"},
		{"update becomes file_updated", "update", "file_updated"},
		{"trash becomes file_deleted", "trash", "file_deleted"},
		{"remove becomes file_deleted", "remove", "file_deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := []byte(`{"channel_id":"ch-1","resource_id":"res-1","resource_state":"` + tt.resourceState + `","user_id":"user-1"}`)

			events, err := parser.Parse(raw)
			require.NoError(t, err)
			require.Len(t, events, 1)

			event := events[0]
			assert.Equal(t, tt.wantEventType, event.EventType)
			assert.Equal(t, "res-1", event.ResourceID)
			assert.Equal(t, "file", event.ResourceType)
			assert.Equal(t, "user-1", event.UserID)
			assert.NotEmpty(t, event.ID)
			assert.False(t, event.Processed)
			assert.Zero(t, event.ProcessingAttempts)
		})
	}
}

func TestParser_ChangeNotificationMissingResourceID(t *testing.T) {
	parser := NewParser(testLogger())

	events, err := parser.Parse([]byte(`{"resource_state":"add"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPayload)
	assert.Empty(t, events)
}

func TestParser_ChangeNotificationUnknownState(t *testing.T) {
	parser := NewParser(testLogger())

	events, err := parser.Parse([]byte(`{"resource_id":"r","resource_state":"sync"}`))
	assert.ErrorIs(t, err, ErrUnknownPayload)
	assert.Empty(t, events)
}

func TestParser_GenericShape(t *testing.T) {
	parser := NewParser(testLogger())

	raw := []byte(`{"event_type":"task_completed","resource_id":"task-9","resource_type":"task","payload":{"title":"ship it"}}`)

	events, err := parser.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "task_completed", event.EventType)
	assert.Equal(t, "task-9", event.ResourceID)
	assert.Equal(t, "task", event.ResourceType)
	assert.Equal(t, map[string]any{"title": "ship it"}, event.Payload)
}

func TestParser_GenericShapeWithoutNestedPayload(t *testing.T) {
	parser := NewParser(testLogger())

	events, err := parser.Parse([]byte(`{"event_type":"calendar_updated","calendar_id":"cal-3"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	// The whole body doubles as payload when no nested payload is given.
	assert.Equal(t, "cal-3", events[0].Payload["calendar_id"])
}

func TestParser_Batch(t *testing.T) {
	parser := NewParser(testLogger())

	raw := []byte(`{"events":[
		{"event_type":"file_created","resource_id":"f-1"},
		{"event_type":"file_updated","resource_id":"f-2"}
	]}`)

	events, err := parser.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "file_created", events[0].EventType)
	assert.Equal(t, "file_updated", events[1].EventType)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestParser_BatchAllOrNothing(t *testing.T) {
	parser := NewParser(testLogger())

	raw := []byte(`{"events":[
		{"event_type":"file_created","resource_id":"f-1"},
		{"resource_id":"f-2"}
	]}`)

	events, err := parser.Parse(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPayload)
	assert.Empty(t, events)
}

func TestParser_UnknownShape(t *testing.T) {
	parser := NewParser(testLogger())

	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `not json`},
		{"no recognizable keys", `{"foo":"bar"}`},
		{"empty batch", `{"events":[]}`},
		{"missing event_type", `{"event_type":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := parser.Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownPayload)
			assert.Empty(t, events)
		})
	}
}
