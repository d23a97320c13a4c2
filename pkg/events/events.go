// Package events defines event types and structures for execution lifecycle
// notifications published on the event bus.
package events

import (
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
)

type EventType string

// Topic is the bus topic carrying all lifecycle events.
const Topic = "atomflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	EventDeadLetteredEvent  EventType = "event.dead_lettered"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Result      map[string]any `json:"result,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type EventDeadLettered struct {
	BaseEvent

	TriggerEventID string `json:"trigger_event_id"`
	EventType      string `json:"trigger_event_type"`
	Attempts       int    `json:"attempts"`
	Error          string `json:"error"`
}

func (e EventDeadLettered) GetType() EventType {
	return EventDeadLetteredEvent
}

// NewEventDeadLettered builds the dead-letter notification for an exhausted
// trigger event.
func NewEventDeadLettered(id string, event *models.TriggerEvent) EventDeadLettered {
	return EventDeadLettered{
		BaseEvent: BaseEvent{
			ID:        id,
			Type:      EventDeadLetteredEvent,
			Timestamp: time.Now().UTC(),
		},
		TriggerEventID: event.ID,
		EventType:      event.EventType,
		Attempts:       event.ProcessingAttempts,
		Error:          event.ErrorMessage,
	}
}
