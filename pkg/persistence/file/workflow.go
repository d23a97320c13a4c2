package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// GetAll returns all workflows, newest first.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	ids, err := listDocumentIDs(wr.dir())
	if err != nil {
		return nil, persistence.NewStoreError("GetAll", "workflow", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow := &models.Workflow{}
		if err := readDocument(wr.path(id), workflow); err != nil {
			return nil, persistence.NewStoreError("GetAll", "workflow", id, err)
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID returns the workflow with the given id.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflow := &models.Workflow{}
	if err := readDocument(wr.path(id), workflow); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, persistence.NewStoreError("GetByID", "workflow", id, err)
	}

	return workflow, nil
}

// Save writes the workflow document, creating or replacing it.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := writeDocument(wr.path(workflow.ID), workflow); err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

// Delete removes the workflow document.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := os.Remove(wr.path(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrWorkflowNotFound
		}

		return persistence.NewStoreError("Delete", "workflow", id, err)
	}

	return nil
}

// ListActiveByTriggerType returns active workflows whose trigger type equals eventType.
func (wr *WorkflowRepository) ListActiveByTriggerType(ctx context.Context, eventType string) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.Status == models.WorkflowStatusActive && workflow.Trigger.Type == eventType {
			matched = append(matched, workflow)
		}
	}

	return matched, nil
}
