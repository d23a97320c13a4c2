// Package file provides file-based persistence for workflows, executions,
// trigger events, and webhook subscriptions. It is intended for development
// and tests; production deployments use the postgresql package.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rush86999/atom-sub011/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
// Each entity is stored as one JSON document under a per-kind directory.
type Persistence struct {
	root          string
	workflows     *WorkflowRepository
	executions    *ExecutionRepository
	events        *EventRepository
	subscriptions *SubscriptionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflows:     NewWorkflowRepository(cleanRoot),
		executions:    NewExecutionRepository(cleanRoot),
		events:        NewEventRepository(cleanRoot),
		subscriptions: NewSubscriptionRepository(cleanRoot),
	}
}

func (fp *Persistence) Workflows() persistence.WorkflowRepository { return fp.workflows }

func (fp *Persistence) Executions() persistence.ExecutionRepository { return fp.executions }

func (fp *Persistence) Events() persistence.EventRepository { return fp.events }

func (fp *Persistence) Subscriptions() persistence.SubscriptionRepository { return fp.subscriptions }

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists, creating it when missing.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.MkdirAll(fp.root, 0o755)
	}

	return nil
}

// readDocument loads one JSON document into v.
func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

// writeDocument atomically replaces the JSON document at path.
func writeDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	return os.Rename(tmp, path)
}

// listDocumentIDs returns the ids (file names without extension) stored under dir.
func listDocumentIDs(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
