package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rush86999/atom-sub011/pkg/eventbus"
	"github.com/rush86999/atom-sub011/pkg/events"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/otelhelper"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs a workflow's ordered actions, producing an execution and one
// step per attempted action. Action failures are isolated to their step;
// persistence failures are engine errors that mark the execution FAILED and
// are surfaced to the caller. Executions run to a terminal state and are not
// interruptible.
type Executor struct {
	executions persistence.ExecutionRepository
	registry   *registry.Registry
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewExecutor creates an execution engine. publisher may be nil, in which
// case lifecycle events are not emitted.
func NewExecutor(executions persistence.ExecutionRepository, reg *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger) *Executor {
	return &Executor{
		executions: executions,
		registry:   reg,
		publisher:  publisher,
		tracer:     otel.Tracer("atomflow/executor"),
		logger:     logger.With("module", "workflow_executor"),
	}
}

// Execute runs the workflow against the given trigger data. The returned
// execution is always terminal. The error return is non-nil only for
// engine-level failures (inactive workflow, persistence breakage); an action
// failure yields a FAILED execution and a nil error.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, triggerData map[string]any) (*models.WorkflowExecution, error) {
	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, workflow.ID)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
	)
	defer span.End()

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		Status:      models.ExecutionStatusRunning,
		StartTime:   time.Now().UTC(),
		TriggerData: triggerData,
	}

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Starting execution of workflow", "actions", len(workflow.Actions))

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution for workflow %s: %w", workflow.ID, err)
	}

	e.publishStarted(ctx, execution)

	stepResults := make(map[string]any)

	var actionFailure error

	for i, action := range workflow.Actions {
		step, err := e.runStep(ctx, workflow, execution, i, action, stepResults, logger)
		if err != nil {
			// Persistence failure mid-run: the execution must never be left
			// RUNNING forever.
			return execution, e.failExecution(ctx, execution, err, logger)
		}

		if step.Status == models.StepStatusFailed {
			if action.StopsOnError() {
				actionFailure = fmt.Errorf("action %d (%s) failed: %s", i, action.Type, step.Error)

				break
			}

			logger.WarnContext(ctx, "Action failed, continuing", "action_index", i, "action_type", action.Type, "error", step.Error)

			continue
		}

		stepResults[strconv.Itoa(i)] = step.Result
	}

	now := time.Now().UTC()
	execution.EndTime = &now

	if actionFailure != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = actionFailure.Error()
	} else {
		execution.Status = models.ExecutionStatusCompleted
		execution.Result = map[string]any{"steps": stepResults}
	}

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist terminal execution state", "error", err)

		return execution, fmt.Errorf("failed to persist execution %s: %w", execution.ID, err)
	}

	if actionFailure != nil {
		logger.WarnContext(ctx, "Execution failed", "error", execution.Error)
		e.publishFailed(ctx, execution)
	} else {
		logger.InfoContext(ctx, "Execution completed")
		e.publishCompleted(ctx, execution)
	}

	return execution, nil
}

// runStep creates, runs, and persists one step. The returned error is
// engine-level (persistence); an action failure is recorded on the step.
func (e *Executor) runStep(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	index int,
	action models.ActionSpec,
	stepResults map[string]any,
	logger *slog.Logger,
) (*models.ExecutionStep, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.Int(otelhelper.ActionIndexKey, index),
		attribute.String(otelhelper.ActionTypeKey, action.Type),
	)
	defer span.End()

	step := &models.ExecutionStep{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		ActionIndex: index,
		ActionType:  action.Type,
		Status:      models.StepStatusRunning,
		StartTime:   time.Now().UTC(),
	}

	if err := e.executions.SaveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to create step %d: %w", index, err)
	}

	actionCtx := models.ActionContext{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		TriggerData: execution.TriggerData,
		StepResults: stepResults,
	}

	result, actionErr := e.runAction(ctx, action, actionCtx, logger)

	now := time.Now().UTC()
	step.EndTime = &now

	if actionErr != nil {
		step.Status = models.StepStatusFailed
		step.Error = actionErr.Error()

		otelhelper.RecordError(span, actionErr)
	} else {
		step.Status = models.StepStatusCompleted
		step.Result = result
	}

	if err := e.executions.SaveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to persist step %d: %w", index, err)
	}

	return step, nil
}

// runAction resolves and invokes the executor for an action. Any failure,
// including an unknown action type, is returned as an action error and never
// propagates out of the engine.
func (e *Executor) runAction(ctx context.Context, action models.ActionSpec, actionCtx models.ActionContext, logger *slog.Logger) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action executor panicked: %v", r)
		}
	}()

	executor, err := e.registry.CreateAction(action.Type, action.Config)
	if err != nil {
		return nil, err
	}

	return executor.Execute(ctx, actionCtx, logger)
}

// failExecution records an engine-level failure. The original error is always
// returned to the caller.
func (e *Executor) failExecution(ctx context.Context, execution *models.WorkflowExecution, cause error, logger *slog.Logger) error {
	logger.ErrorContext(ctx, "Engine failure during execution", "error", cause)

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusFailed
	execution.Error = cause.Error()
	execution.EndTime = &now

	if err := e.executions.SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to mark execution FAILED after engine error", "error", err)
	}

	e.publishFailed(ctx, execution)

	return cause
}

func (e *Executor) publishStarted(ctx context.Context, execution *models.WorkflowExecution) {
	if e.publisher == nil {
		return
	}

	event := events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.ExecutionStartedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		TriggerData: execution.TriggerData,
	}

	if err := e.publisher.Publish(ctx, execution.WorkflowID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution started event", "error", err)
	}
}

func (e *Executor) publishCompleted(ctx context.Context, execution *models.WorkflowExecution) {
	if e.publisher == nil {
		return
	}

	event := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		Result:      execution.Result,
		Duration:    execution.EndTime.Sub(execution.StartTime),
	}

	if err := e.publisher.Publish(ctx, execution.WorkflowID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution completed event", "error", err)
	}
}

func (e *Executor) publishFailed(ctx context.Context, execution *models.WorkflowExecution) {
	if e.publisher == nil {
		return
	}

	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}

	event := events.ExecutionFailed{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.ExecutionFailedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: execution.WorkflowID,
		},
		ExecutionID: execution.ID,
		Error:       execution.Error,
		Duration:    duration,
	}

	if err := e.publisher.Publish(ctx, execution.WorkflowID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution failed event", "error", err)
	}
}
