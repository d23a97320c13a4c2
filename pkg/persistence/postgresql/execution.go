package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// ExecutionRepository handles execution and step database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , status
  , start_time
  , end_time
  , trigger_data
  , result
  , error
`

// SaveExecution upserts an execution record.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID,
			fmt.Errorf("failed to marshal trigger data: %w", err))
	}

	resultJSON, err := json.Marshal(execution.Result)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID,
			fmt.Errorf("failed to marshal result: %w", err))
	}

	query := `
		INSERT INTO workflow_executions
			(id, workflow_id, status, start_time, end_time, trigger_data, result, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			result = EXCLUDED.result,
			error = EXCLUDED.error
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.StartTime,
		execution.EndTime,
		triggerDataJSON,
		resultJSON,
		execution.Error,
	)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", "execution", execution.ID, err)
	}

	return nil
}

// ExecutionByID returns an execution by its ID.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ExecutionByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("ExecutionByID", "execution", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns the most recent executions of a workflow.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY start_time DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, persistence.NewStoreError("ListByWorkflow", "execution", workflowID, err)
	}

	defer r.closeRows(ctx, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ListByWorkflow", "execution", workflowID, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListByWorkflow", "execution", workflowID, err)
	}

	return executions, nil
}

// SaveStep upserts a step record.
func (r *ExecutionRepository) SaveStep(ctx context.Context, step *models.ExecutionStep) error {
	resultJSON, err := json.Marshal(step.Result)
	if err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID,
			fmt.Errorf("failed to marshal step result: %w", err))
	}

	query := `
		INSERT INTO workflow_steps
			(id, execution_id, action_index, action_type, status, start_time, end_time, result, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			result = EXCLUDED.result,
			error = EXCLUDED.error
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.ExecutionID,
		step.ActionIndex,
		step.ActionType,
		step.Status,
		step.StartTime,
		step.EndTime,
		resultJSON,
		step.Error,
	)
	if err != nil {
		return persistence.NewStoreError("SaveStep", "step", step.ID, err)
	}

	return nil
}

// StepsByExecution returns the steps of an execution ordered by action index.
func (r *ExecutionRepository) StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	query := `
		SELECT id, execution_id, action_index, action_type, status, start_time, end_time, result, error
		FROM workflow_steps
		WHERE execution_id = $1
		ORDER BY action_index
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	defer r.closeRows(ctx, rows)

	steps := make([]*models.ExecutionStep, 0)

	for rows.Next() {
		var (
			step       models.ExecutionStep
			resultJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.ExecutionID,
			&step.ActionIndex,
			&step.ActionType,
			&step.Status,
			&step.StartTime,
			&step.EndTime,
			&resultJSON,
			&step.Error,
		)
		if err != nil {
			return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
		}

		if resultJSON != nil {
			if err := json.Unmarshal(resultJSON, &step.Result); err != nil {
				return nil, persistence.NewStoreError("StepsByExecution", "step", executionID,
					fmt.Errorf("failed to unmarshal step result: %w", err))
			}
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("StepsByExecution", "step", executionID, err)
	}

	return steps, nil
}

// StatsByWorkflow aggregates the execution history of a workflow. Duration is
// averaged over terminal executions only.
func (r *ExecutionRepository) StatsByWorkflow(ctx context.Context, workflowID string) (*models.WorkflowStats, error) {
	query := `
		SELECT
			COUNT(*)
		  , COUNT(*) FILTER (WHERE status = $2)
		  , COUNT(*) FILTER (WHERE status = $3)
		  , COALESCE(AVG(EXTRACT(EPOCH FROM (end_time - start_time))) FILTER (WHERE end_time IS NOT NULL), 0)
		  , MAX(start_time)
		FROM workflow_executions
		WHERE workflow_id = $1
	`

	var (
		stats      models.WorkflowStats
		avgSeconds float64
		lastStart  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, workflowID,
		models.ExecutionStatusCompleted, models.ExecutionStatusFailed).Scan(
		&stats.TotalExecutions,
		&stats.Completed,
		&stats.Failed,
		&avgSeconds,
		&lastStart,
	)
	if err != nil {
		return nil, persistence.NewStoreError("StatsByWorkflow", "execution", workflowID, err)
	}

	stats.WorkflowID = workflowID
	stats.AverageDuration = time.Duration(avgSeconds * float64(time.Second))

	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalExecutions)
	}

	if lastStart.Valid {
		t := lastStart.Time
		stats.LastExecutionAt = &t
	}

	return &stats, nil
}

func (r *ExecutionRepository) scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowExecution, error) {
	var (
		execution                   models.WorkflowExecution
		triggerDataJSON, resultJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.StartTime,
		&execution.EndTime,
		&triggerDataJSON,
		&resultJSON,
		&execution.Error,
	)
	if err != nil {
		return nil, err
	}

	if triggerDataJSON != nil {
		if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &execution.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return &execution, nil
}

func (r *ExecutionRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
