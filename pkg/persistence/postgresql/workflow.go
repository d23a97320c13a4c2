package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , name
  , description
  , trigger_type
  , trigger_filter
  , actions
  , status
  , owner
  , created_at
  , updated_at
`

// GetAll returns all workflows ordered by creation time, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("GetAll", "workflow", "", err)
	}

	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("GetAll", "workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("GetAll", "workflow", "", err)
	}

	return workflows, nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	filterJSON, err := json.Marshal(workflow.Trigger.Filter)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID,
			fmt.Errorf("failed to marshal trigger filter: %w", err))
	}

	actionsJSON, err := json.Marshal(workflow.Actions)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID,
			fmt.Errorf("failed to marshal actions: %w", err))
	}

	query := `
		INSERT INTO workflows
			(id, name, description, trigger_type, trigger_filter, actions, status, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_filter = EXCLUDED.trigger_filter,
			actions = EXCLUDED.actions,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Trigger.Type,
		filterJSON,
		actionsJSON,
		workflow.Status,
		workflow.Owner,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

// Delete removes a workflow.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// ListActiveByTriggerType returns active workflows reacting to eventType.
func (r *WorkflowRepository) ListActiveByTriggerType(ctx context.Context, eventType string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE status = $1 AND trigger_type = $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, models.WorkflowStatusActive, eventType)
	if err != nil {
		return nil, persistence.NewStoreError("ListActiveByTriggerType", "workflow", "", err)
	}

	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("ListActiveByTriggerType", "workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("ListActiveByTriggerType", "workflow", "", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var (
		w                       models.Workflow
		filterJSON, actionsJSON []byte
	)

	err := scanner.Scan(
		&w.ID,
		&w.Name,
		&w.Description,
		&w.Trigger.Type,
		&filterJSON,
		&actionsJSON,
		&w.Status,
		&w.Owner,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if filterJSON != nil {
		if err := json.Unmarshal(filterJSON, &w.Trigger.Filter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger filter: %w", err)
		}
	}

	if err := json.Unmarshal(actionsJSON, &w.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	return &w, nil
}

func (r *WorkflowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
