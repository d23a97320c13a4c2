package workflow

import (
	"context"
	"testing"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestExecutor_SingleActionSuccess(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(models.ActionSpec{Type: "ok"})

	execution, err := executor.Execute(ctx, workflow, map[string]any{"resource_id": "res-1"})
	require.NoError(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.NotNil(t, execution.EndTime)
	assert.Empty(t, execution.Error)

	steps, err := persistence.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 0, steps[0].ActionIndex)
	assert.Equal(t, "ok", steps[0].ActionType)
	assert.Equal(t, models.StepStatusCompleted, steps[0].Status)
	assert.NotNil(t, steps[0].EndTime)
}

func TestExecutor_FailingActionStopsRemaining(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(
		models.ActionSpec{Type: "fail"},
		models.ActionSpec{Type: "ok"},
		models.ActionSpec{Type: "ok"},
	)

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "action 0")
	assert.Contains(t, execution.Error, "action exploded")
	assert.NotNil(t, execution.EndTime)

	// Nothing after the failing first action may run.
	steps, err := persistence.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, models.StepStatusFailed, steps[0].Status)
	assert.Equal(t, "action exploded", steps[0].Error)
}

func TestExecutor_TolerantContinuation(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(
		models.ActionSpec{Type: "fail", StopOnError: boolPtr(false)},
		models.ActionSpec{Type: "ok"},
	)

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)

	// A tolerated failure does not taint the run.
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	steps, err := persistence.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepStatusFailed, steps[0].Status)
	assert.Equal(t, models.StepStatusCompleted, steps[1].Status)
}

func TestExecutor_StepIndicesAreGapless(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(
		models.ActionSpec{Type: "ok"},
		models.ActionSpec{Type: "ok"},
		models.ActionSpec{Type: "fail", StopOnError: boolPtr(false)},
		models.ActionSpec{Type: "ok"},
	)

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)

	steps, err := persistence.Executions().StepsByExecution(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 4)

	for i, step := range steps {
		assert.Equal(t, i, step.ActionIndex)
	}
}

func TestExecutor_StepResultsVisibleToLaterActions(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(
		models.ActionSpec{Type: "ok"},
		models.ActionSpec{Type: "ok"},
	)

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	// Completed results are keyed by action index in the final result.
	stepResults, ok := execution.Result["steps"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, stepResults, "0")
	assert.Contains(t, stepResults, "1")
}

func TestExecutor_UnknownActionTypeFailsStep(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(models.ActionSpec{Type: "no_such_action"})

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "no_such_action")
}

func TestExecutor_PanickingActionIsContained(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(models.ActionSpec{Type: "panic"})

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.Error, "panicked")
}

func TestExecutor_InactiveWorkflowRejected(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(models.ActionSpec{Type: "ok"})
	workflow.Status = models.WorkflowStatusInactive

	execution, err := executor.Execute(ctx, workflow, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkflowInactive)
	assert.Nil(t, execution)
}

func TestExecutor_ExecutionPersistedTerminal(t *testing.T) {
	ctx := context.Background()
	persistence := newTestPersistence(t)
	executor := NewExecutor(persistence.Executions(), createTestRegistry(), nil, testLogger())

	workflow := activeWorkflow(models.ActionSpec{Type: "ok"})

	execution, err := executor.Execute(ctx, workflow, nil)
	require.NoError(t, err)

	stored, err := persistence.Executions().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.True(t, stored.Terminal())
	assert.Equal(t, workflow.ID, stored.WorkflowID)
}
