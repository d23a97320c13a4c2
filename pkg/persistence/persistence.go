// Package persistence provides the data storage abstraction layer for
// workflows, executions, trigger events, and webhook subscriptions.
package persistence

import (
	"context"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
)

// Persistence aggregates the repositories of the engine. In-memory state held
// by callers is a cache; repositories are always the system of record.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Events() EventRepository
	Subscriptions() SubscriptionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	// GetByID returns ErrWorkflowNotFound when no workflow has the given id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	// ListActiveByTriggerType returns active workflows whose trigger type
	// equals eventType.
	ListActiveByTriggerType(ctx context.Context, eventType string) ([]*models.Workflow, error)
}

// ExecutionRepository stores executions and their steps. Writes are keyed by
// unique execution/step ids, so concurrent executions never contend on the
// same row.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	// ExecutionByID returns ErrExecutionNotFound when unknown.
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error)

	SaveStep(ctx context.Context, step *models.ExecutionStep) error
	// StepsByExecution returns the steps ordered by action index.
	StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error)

	StatsByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowStats, error)
}

// EventRepository stores trigger events.
type EventRepository interface {
	Save(ctx context.Context, event *models.TriggerEvent) error
	// GetByID returns ErrEventNotFound when unknown.
	GetByID(ctx context.Context, id string) (*models.TriggerEvent, error)
	// ListPending returns unprocessed events with fewer than maxAttempts
	// processing attempts, oldest first.
	ListPending(ctx context.Context, maxAttempts int) ([]*models.TriggerEvent, error)
	// DeleteProcessedBefore purges processed events older than cutoff and
	// returns the number removed. Pending events are never touched.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SubscriptionRepository stores webhook subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, subscription *models.WebhookSubscription) error
	// GetByID returns ErrSubscriptionNotFound when unknown.
	GetByID(ctx context.Context, id string) (*models.WebhookSubscription, error)
	GetAll(ctx context.Context) ([]*models.WebhookSubscription, error)
	// ListActiveExpiringBefore returns active subscriptions whose expiration
	// is at or before the given instant.
	ListActiveExpiringBefore(ctx context.Context, t time.Time) ([]*models.WebhookSubscription, error)
	Delete(ctx context.Context, id string) error
}
