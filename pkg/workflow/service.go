package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/registry"
)

// Service is the workflow registry: CRUD with validation, plus matching of
// trigger events against active workflows.
type Service struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService creates a new workflow service.
func NewService(p persistence.Persistence, r *registry.Registry, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		registry:    r,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Service) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and persists a new workflow. On validation failure nothing
// is persisted.
func (s *Service) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := s.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	s.logger.InfoContext(ctx, "Created workflow", "workflow_id", workflow.ID, "name", workflow.Name)

	return workflow, nil
}

// Update re-validates and replaces an existing workflow, keeping its id and
// creation time.
func (s *Service) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	workflow.ID = existing.ID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if workflow.Status == "" {
		workflow.Status = existing.Status
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.persistence.Workflows().Delete(ctx, id)
}

// FetchByID returns a workflow by id.
func (s *Service) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.Workflows().GetByID(ctx, id)
}

// List returns all workflows.
func (s *Service) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows().GetAll(ctx)
}

// Match returns active workflows whose trigger type equals the event type and
// whose filter, when present, matches the event payload.
func (s *Service) Match(ctx context.Context, event *models.TriggerEvent) ([]*models.Workflow, error) {
	candidates, err := s.persistence.Workflows().ListActiveByTriggerType(ctx, event.EventType)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows for event type %s: %w", event.EventType, err)
	}

	matched := make([]*models.Workflow, 0, len(candidates))

	for _, workflow := range candidates {
		if matchesFilter(workflow.Trigger.Filter, event.Payload) {
			matched = append(matched, workflow)
		}
	}

	return matched, nil
}

// matchesFilter applies simple equality/membership checks: a list value
// requires the payload field to be one of its members, any other value
// requires equality. There is no predicate language.
func matchesFilter(filter map[string]any, payload map[string]any) bool {
	for field, want := range filter {
		got, ok := payload[field]
		if !ok {
			return false
		}

		if members, isList := want.([]any); isList {
			if !containsValue(members, got) {
				return false
			}

			continue
		}

		if !valuesEqual(want, got) {
			return false
		}
	}

	return true
}

func containsValue(members []any, got any) bool {
	for _, member := range members {
		if valuesEqual(member, got) {
			return true
		}
	}

	return false
}

func valuesEqual(want, got any) bool {
	if reflect.DeepEqual(want, got) {
		return true
	}

	// JSON decoding yields float64 for all numbers; compare representations
	// so 1 matches 1.0.
	return fmt.Sprint(want) == fmt.Sprint(got)
}

func (s *Service) validateWorkflow(workflow *models.Workflow) error {
	if workflow == nil {
		return ErrWorkflowNil
	}

	if workflow.Name == "" {
		return ErrNameRequired
	}

	if workflow.Trigger.Type == "" {
		return ErrTriggerTypeRequired
	}

	if len(workflow.Actions) == 0 {
		return ErrActionsRequired
	}

	if err := s.validate.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWorkflowSpec, err.Error())
	}

	for i, action := range workflow.Actions {
		if action.Type == "" {
			return fmt.Errorf("%w: action %d", ErrActionTypeRequired, i)
		}

		if !s.registry.IsActionRegistered(action.Type) {
			return fmt.Errorf("%w: %q at action %d", ErrUnknownActionType, action.Type, i)
		}

		if err := s.registry.ValidateActionConfig(action.Type, action.Config); err != nil {
			return fmt.Errorf("%w: action %d: %s", ErrInvalidActionConfig, i, err.Error())
		}
	}

	return nil
}
