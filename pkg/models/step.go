package models

import "time"

// StepStatus represents the state of a single execution step.
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// ExecutionStep records one action's outcome within an execution. Steps are
// created strictly in increasing ActionIndex order with no gaps, so for any
// execution the recorded indices are exactly {0..k-1} for some k not larger
// than the workflow's action count.
type ExecutionStep struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"execution_id"`
	ActionIndex int        `json:"action_index"`
	ActionType  string     `json:"action_type"`
	Status      StepStatus `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}
