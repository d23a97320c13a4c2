// Package registry maintains the mapping from action type strings to action
// executor factories. It is built once at process start and injected into the
// services that need it, so tests substitute fakes without mutating shared
// state.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/rush86999/atom-sub011/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ErrActionNotRegistered is wrapped into errors for unknown action types.
var ErrActionNotRegistered = fmt.Errorf("action type not registered")

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds an action factory, replacing any previous factory with
// the same id.
func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
}

// IsActionRegistered reports whether an action type is known.
func (r *Registry) IsActionRegistered(actionType string) bool {
	_, exists := r.actionFactories[actionType]

	return exists
}

// ActionTypes returns the registered action type ids, sorted.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// CreateAction builds an executor instance for the given type and config.
func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotRegistered, actionType)
	}

	return factory.Create(config)
}

// ValidateActionConfig checks a config map against the registered factory's
// JSON schema. Unknown types and schema violations are reported as errors so
// bad configs are rejected at workflow-creation time, not at execution time.
func (r *Registry) ValidateActionConfig(actionType string, config map[string]any) error {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrActionNotRegistered, actionType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for action %q: %w", actionType, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid config for action %q: %s", actionType, errs[0].String())
		}

		return fmt.Errorf("invalid config for action %q", actionType)
	}

	return nil
}

// HealthCheck reports whether the registry has any executors available.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.actionFactories) == 0 {
		return "No action executors registered", false
	}

	return fmt.Sprintf("%d action executors registered", len(r.actionFactories)), true
}
