// Package log provides an action that writes a message to the process log.
package log

import (
	"context"
	"log/slog"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/protocol"
)

// ActionFactory builds LogAction instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "log"
}

func (*ActionFactory) Name() string {
	return "Log"
}

func (*ActionFactory) Description() string {
	return "Logs a message at a configurable level."
}

// Schema returns the JSON schema for the action configuration.
func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

// Create creates a new LogAction instance with the provided configuration.
func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewLogAction(config), nil
}

// LogAction writes a configured message to the logger.
type LogAction struct {
	Message string
	Level   string
}

func NewLogAction(config map[string]any) *LogAction {
	message, _ := config["message"].(string)

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	return &LogAction{Message: message, Level: level}
}

func (a *LogAction) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "log", "execution_id", actionCtx.ExecutionID)

	switch a.Level {
	case "debug":
		logger.DebugContext(ctx, a.Message)
	case "warn":
		logger.WarnContext(ctx, a.Message)
	case "error":
		logger.ErrorContext(ctx, a.Message)
	default:
		logger.InfoContext(ctx, a.Message)
	}

	return map[string]any{
		"message": a.Message,
		"level":   a.Level,
	}, nil
}
