// Package models defines the core domain models for trigger-driven workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Matched against events and executable
	WorkflowStatusInactive WorkflowStatus = "inactive" // Retained but never matched or executed
)

// TriggerSpec declares which trigger events a workflow reacts to. Filter holds
// optional field constraints checked against the event payload: a scalar value
// requires equality, a list requires membership.
type TriggerSpec struct {
	Type   string         `json:"type"             validate:"required"`
	Filter map[string]any `json:"filter,omitempty"`
}

// ActionSpec is one ordered action of a workflow. StopOnError defaults to true
// when omitted.
type ActionSpec struct {
	Type        string         `json:"type"                    validate:"required"`
	Config      map[string]any `json:"config"`
	StopOnError *bool          `json:"stop_on_error,omitempty"`
}

// StopsOnError reports whether a failure of this action aborts the remaining
// actions of the execution.
func (a ActionSpec) StopsOnError() bool {
	return a.StopOnError == nil || *a.StopOnError
}

// Workflow is a persisted rule "when trigger X occurs, run ordered actions Y".
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Trigger     TriggerSpec    `json:"trigger"     validate:"required"`
	Actions     []ActionSpec   `json:"actions"     validate:"required,min=1,dive"`
	Status      WorkflowStatus `json:"status"`
	Owner       string         `json:"owner"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
