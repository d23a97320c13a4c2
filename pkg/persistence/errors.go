// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrEventNotFound indicates a trigger event was not found by the given identifier.
	ErrEventNotFound = errors.New("trigger event not found")

	// ErrSubscriptionNotFound indicates a webhook subscription was not found by the given identifier.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// StoreError wraps persistence errors with operation and entity context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Entity   string // Entity kind (workflow, execution, event, subscription)
	EntityID string // Entity ID if applicable
	Err      error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, entity, entityID string, err error) *StoreError {
	return &StoreError{
		Op:       op,
		Entity:   entity,
		EntityID: entityID,
		Err:      err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsEventNotFound checks if an error indicates a trigger event was not found.
func IsEventNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound)
}

// IsSubscriptionNotFound checks if an error indicates a subscription was not found.
func IsSubscriptionNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}
