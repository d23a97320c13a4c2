package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence/file"
	"github.com/rush86999/atom-sub011/pkg/protocol"
	"github.com/rush86999/atom-sub011/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

// fakeAction returns a fixed result or error.
type fakeAction struct {
	result any
	err    error
}

func (a *fakeAction) Execute(_ context.Context, _ models.ActionContext, _ *slog.Logger) (any, error) {
	return a.result, a.err
}

type fakeActionFactory struct {
	id     string
	result any
	err    error
}

func (f *fakeActionFactory) ID() string          { return f.id }
func (f *fakeActionFactory) Name() string        { return f.id }
func (f *fakeActionFactory) Description() string { return "test action" }

func (f *fakeActionFactory) Schema() map[string]any { return nil }

func (f *fakeActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &fakeAction{result: f.result, err: f.err}, nil
}

type panicActionFactory struct{}

func (f *panicActionFactory) ID() string             { return "panic" }
func (f *panicActionFactory) Name() string           { return "panic" }
func (f *panicActionFactory) Description() string    { return "always panics" }
func (f *panicActionFactory) Schema() map[string]any { return nil }

func (f *panicActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &panicAction{}, nil
}

type panicAction struct{}

func (a *panicAction) Execute(_ context.Context, _ models.ActionContext, _ *slog.Logger) (any, error) {
	panic("boom")
}

func createTestRegistry() *registry.Registry {
	reg := registry.NewRegistry(testLogger())
	reg.RegisterAction(&fakeActionFactory{id: "ok", result: map[string]any{"done": true}})
	reg.RegisterAction(&fakeActionFactory{id: "fail", err: errors.New("action exploded")})
	reg.RegisterAction(&panicActionFactory{})

	return reg
}

func activeWorkflow(actions ...models.ActionSpec) *models.Workflow {
	return &models.Workflow{
		ID:      "wf-1",
		Name:    "Test Workflow",
		Trigger: models.TriggerSpec{Type: "file_created"},
		Actions: actions,
		Status:  models.WorkflowStatusActive,
	}
}
