package models

// ActionContext carries the action-local data an executor sees: the trigger
// data snapshot of the execution plus the results of all prior steps, keyed
// by action index as a decimal string.
type ActionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	StepResults map[string]any `json:"step_results,omitempty"`
}
