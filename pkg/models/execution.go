package models

import "time"

// ExecutionStatus represents the state machine of a workflow execution.
// RUNNING is the only non-terminal state; an execution is immutable once it
// reaches COMPLETED or FAILED.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// WorkflowExecution is one concrete run of a workflow for a specific trigger.
type WorkflowExecution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
	Result      map[string]any  `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Terminal reports whether the execution has reached a final state.
func (e *WorkflowExecution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// WorkflowStats aggregates the execution history of a single workflow.
type WorkflowStats struct {
	WorkflowID      string        `json:"workflow_id"`
	TotalExecutions int64         `json:"total_executions"`
	Completed       int64         `json:"completed"`
	Failed          int64         `json:"failed"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	LastExecutionAt *time.Time    `json:"last_execution_at,omitempty"`
}
