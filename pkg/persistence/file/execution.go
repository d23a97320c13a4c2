package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// ExecutionRepository handles execution and step file operations. Executions
// are stored per id; the steps of an execution are stored together as one
// ordered document keyed by the execution id.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) executionsDir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) executionPath(id string) string {
	return filepath.Join(er.executionsDir(), id+".json")
}

func (er *ExecutionRepository) stepsPath(executionID string) string {
	return filepath.Join(er.root, "steps", executionID+".json")
}

// SaveExecution writes the execution document, creating or replacing it.
func (er *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := writeDocument(er.executionPath(execution.ID), execution); err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID, err)
	}

	return nil
}

// ExecutionByID returns the execution with the given id.
func (er *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	execution := &models.WorkflowExecution{}
	if err := readDocument(er.executionPath(id), execution); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, persistence.NewStoreError("ExecutionByID", "execution", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns the most recent executions of a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	executions, err := er.listByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (er *ExecutionRepository) listByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listDocumentIDs(er.executionsDir())
	if err != nil {
		return nil, persistence.NewStoreError("ListByWorkflow", "execution", "", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, id := range ids {
		execution := &models.WorkflowExecution{}
		if err := readDocument(er.executionPath(id), execution); err != nil {
			return nil, persistence.NewStoreError("ListByWorkflow", "execution", id, err)
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartTime.After(executions[j].StartTime)
	})

	return executions, nil
}

// SaveStep appends or replaces one step in the execution's step document.
func (er *ExecutionRepository) SaveStep(ctx context.Context, step *models.ExecutionStep) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	path := er.stepsPath(step.ExecutionID)

	steps := make([]*models.ExecutionStep, 0)
	if err := readDocument(path, &steps); err != nil && !os.IsNotExist(err) {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	replaced := false

	for i, existing := range steps {
		if existing.ID == step.ID {
			steps[i] = step
			replaced = true

			break
		}
	}

	if !replaced {
		steps = append(steps, step)
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].ActionIndex < steps[j].ActionIndex
	})

	if err := writeDocument(path, steps); err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	return nil
}

// StepsByExecution returns the steps of an execution ordered by action index.
func (er *ExecutionRepository) StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	steps := make([]*models.ExecutionStep, 0)
	if err := readDocument(er.stepsPath(executionID), &steps); err != nil {
		if os.IsNotExist(err) {
			return []*models.ExecutionStep{}, nil
		}

		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	return steps, nil
}

// StatsByWorkflow aggregates the execution history of a workflow in memory.
func (er *ExecutionRepository) StatsByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowStats, error) {
	executions, err := er.listByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	stats := &models.WorkflowStats{WorkflowID: workflowID}

	var totalDuration time.Duration

	var finished int64

	for _, execution := range executions {
		stats.TotalExecutions++

		if stats.LastExecutionAt == nil || execution.StartTime.After(*stats.LastExecutionAt) {
			start := execution.StartTime
			stats.LastExecutionAt = &start
		}

		switch execution.Status {
		case models.ExecutionStatusCompleted:
			stats.Completed++
		case models.ExecutionStatusFailed:
			stats.Failed++
		case models.ExecutionStatusRunning:
		}

		if execution.EndTime != nil {
			totalDuration += execution.EndTime.Sub(execution.StartTime)
			finished++
		}
	}

	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalExecutions)
	}

	if finished > 0 {
		stats.AverageDuration = totalDuration / time.Duration(finished)
	}

	return stats, nil
}
