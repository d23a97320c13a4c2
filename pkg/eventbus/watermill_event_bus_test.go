package eventbus_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rush86999/atom-sub011/pkg/channels/gochannel"
	"github.com/rush86999/atom-sub011/pkg/eventbus"
	"github.com/rush86999/atom-sub011/pkg/events"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func waitForEvent(t *testing.T, received chan any) any {
	t.Helper()

	select {
	case event := <-received:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")

		return nil
	}
}

func TestWatermillEventBus_ExecutionCompletedRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 1)
	bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	published := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ExecutionID: "exec-1",
		Result:      map[string]any{"steps": map[string]any{"0": map[string]any{"done": true}}},
		Duration:    3 * time.Second,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", published))

	event, ok := waitForEvent(t, received).(*events.ExecutionCompleted)
	require.True(t, ok)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, events.ExecutionCompletedEvent, event.Type)
	assert.Equal(t, 3*time.Second, event.Duration)
	assert.NotEmpty(t, event.Result)
}

func TestWatermillEventBus_DeadLetterRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 1)
	bus.Handle(events.EventDeadLetteredEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	trigger := &models.TriggerEvent{
		ID:                 "evt-1",
		EventType:          "file_created",
		ProcessingAttempts: 5,
		ErrorMessage:       "handler kept failing",
	}
	require.NoError(t, bus.Publish(ctx, trigger.ID, events.NewEventDeadLettered(bus.GenerateID(), trigger)))

	event, ok := waitForEvent(t, received).(*events.EventDeadLettered)
	require.True(t, ok)
	assert.Equal(t, "evt-1", event.TriggerEventID)
	assert.Equal(t, "file_created", event.EventType)
	assert.Equal(t, 5, event.Attempts)
	assert.Equal(t, "handler kept failing", event.Error)
}

func TestWatermillEventBus_UnhandledTypesAreSkipped(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan any, 2)
	bus.Handle(events.ExecutionFailedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	started := events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionStartedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	failed := events.ExecutionFailed{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionFailedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ExecutionID: "exec-1",
		Error:       "action 0 failed",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", failed))

	event, ok := waitForEvent(t, received).(*events.ExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, "action 0 failed", event.Error)
	assert.Empty(t, received)
}
