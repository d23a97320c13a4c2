package models

import "time"

// TriggerEvent is a normalized record of an upstream occurrence awaiting
// processing. Lifecycle: created pending, attempted by the event processor
// (ProcessingAttempts incremented on each failure), then either processed on
// success or dead-lettered (Processed true with ErrorMessage retained) once
// the attempt cap is reached.
type TriggerEvent struct {
	ID                 string         `json:"id"`
	EventType          string         `json:"event_type"`
	ResourceID         string         `json:"resource_id,omitempty"`
	ResourceType       string         `json:"resource_type,omitempty"`
	UserID             string         `json:"user_id,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
	Payload            map[string]any `json:"payload,omitempty"`
	Processed          bool           `json:"processed"`
	ProcessingAttempts int            `json:"processing_attempts"`
	ErrorMessage       string         `json:"error_message,omitempty"`
}
