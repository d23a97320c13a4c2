// Package protocol defines the interfaces the engine depends on for action
// execution. Action executors live outside the engine; the dispatcher only
// sees these contracts.
package protocol

import (
	"context"
	"log/slog"

	"github.com/rush86999/atom-sub011/pkg/models"
)

// Action is one configured executor instance. Execute receives the
// action-local context (trigger data plus prior step results) and returns the
// step result. Executors bound their own latency; the engine imposes no
// per-action deadline.
type Action interface {
	Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (any, error)
}

// ActionFactory builds Action instances of one kind from a config map.
type ActionFactory interface {
	// ID is the action type string used in workflow action specs.
	ID() string
	// Name is a human-readable label for the action kind.
	Name() string
	// Description briefly documents what the action does.
	Description() string
	// Schema returns the JSON schema the config map must satisfy.
	Schema() map[string]any
	// Create builds an action from a validated config map.
	Create(config map[string]any) (Action, error)
}
