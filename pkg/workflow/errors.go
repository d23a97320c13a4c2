// Package workflow implements the workflow registry and the execution engine.
package workflow

import "errors"

// Validation errors returned synchronously by the registry; nothing is
// persisted when one of these is returned.
var (
	ErrWorkflowNil         = errors.New("workflow cannot be nil")
	ErrNameRequired        = errors.New("workflow name is required")
	ErrTriggerTypeRequired = errors.New("workflow trigger type is required")
	ErrActionsRequired     = errors.New("workflow must have at least one action")
	ErrActionTypeRequired  = errors.New("every action must have a type")
	ErrUnknownActionType   = errors.New("unknown action type")
	ErrInvalidActionConfig = errors.New("invalid action config")
	ErrInvalidWorkflowSpec = errors.New("invalid workflow spec")
)

// ErrWorkflowInactive rejects execution of a workflow that is not active.
var ErrWorkflowInactive = errors.New("workflow is not active")

// IsValidationError checks if an error is a validation error that should
// surface as a client error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrTriggerTypeRequired) ||
		errors.Is(err, ErrActionsRequired) ||
		errors.Is(err, ErrActionTypeRequired) ||
		errors.Is(err, ErrUnknownActionType) ||
		errors.Is(err, ErrInvalidActionConfig) ||
		errors.Is(err, ErrInvalidWorkflowSpec)
}
