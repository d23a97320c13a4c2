package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/rush86999/atom-sub011/pkg/cmd"
	"github.com/rush86999/atom-sub011/pkg/eventbus"
	"github.com/rush86999/atom-sub011/pkg/events"
	"github.com/rush86999/atom-sub011/pkg/log"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/otelhelper"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/processor"
	"github.com/rush86999/atom-sub011/pkg/queue"
	"github.com/rush86999/atom-sub011/pkg/registry"
	"github.com/rush86999/atom-sub011/pkg/subscription"
	"github.com/rush86999/atom-sub011/pkg/workflow"
)

// Engine runs the background loops: the event processor, the optional redis
// signal source, the subscription renewer, and the retention task.
type Engine struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	registry        *registry.Registry
	eventBus        eventbus.EventBus
	workflowService *workflow.Service
	executor        *workflow.Executor

	processor    *processor.Processor
	cleanup      *processor.Cleanup
	queueSource  *queue.Source
	subscription *subscription.Manager
}

type EngineConfig struct {
	EventTypes    []string
	RedisAddr     string
	RedisQueue    string
	UpstreamURL   string
	RetentionDays int
}

func NewEngine(
	logger *slog.Logger,
	persist persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	config EngineConfig,
) *Engine {
	engine := &Engine{
		logger:          logger,
		persistence:     persist,
		registry:        reg,
		eventBus:        eventBus,
		workflowService: workflow.NewService(persist, reg, logger),
		executor:        workflow.NewExecutor(persist.Executions(), reg, eventBus, logger),
	}

	engine.processor = processor.NewProcessor(
		persist.Events(), processor.DefaultRetryPolicy(), eventBus, logger)

	for _, eventType := range config.EventTypes {
		engine.processor.RegisterHandler(eventType, engine.handleTriggerEvent)
	}

	retention := time.Duration(config.RetentionDays) * 24 * time.Hour
	engine.cleanup = processor.NewCleanup(persist.Events(), retention, logger)

	if config.RedisAddr != "" {
		engine.queueSource = queue.NewSource(queue.Config{
			Addr:  config.RedisAddr,
			Queue: config.RedisQueue,
		}, persist.Events(), logger)
	}

	if config.UpstreamURL != "" {
		upstream := subscription.NewHTTPUpstreamClient(config.UpstreamURL)
		engine.subscription = subscription.NewManager(persist.Subscriptions(), upstream, logger)
	}

	return engine
}

// handleTriggerEvent matches active workflows against the event and executes
// each one. Only engine-level failures propagate, so a workflow whose actions
// fail still counts as a processed event.
func (e *Engine) handleTriggerEvent(ctx context.Context, event *models.TriggerEvent) error {
	matched, err := e.workflowService.Match(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to match workflows: %w", err)
	}

	if len(matched) == 0 {
		e.logger.DebugContext(ctx, "No workflows matched event",
			"event_id", event.ID, "event_type", event.EventType)

		return nil
	}

	triggerData := map[string]any{
		"event_id":      event.ID,
		"event_type":    event.EventType,
		"resource_id":   event.ResourceID,
		"resource_type": event.ResourceType,
		"user_id":       event.UserID,
		"timestamp":     event.Timestamp.UTC().Format(time.RFC3339),
	}
	for k, v := range event.Payload {
		triggerData[k] = v
	}

	for _, wf := range matched {
		_, err := e.executor.Execute(ctx, wf, triggerData)
		if err != nil {
			return fmt.Errorf("failed to execute workflow %s: %w", wf.ID, err)
		}
	}

	return nil
}

// handleDeadLetterNotification surfaces exhausted events in the engine log so
// operators notice them without polling the event store.
func (e *Engine) handleDeadLetterNotification(ctx context.Context, event any) error {
	notification, ok := event.(*events.EventDeadLettered)
	if !ok {
		return fmt.Errorf("unexpected dead-letter payload type %T", event)
	}

	e.logger.WarnContext(ctx, "Trigger event dead-lettered",
		"trigger_event_id", notification.TriggerEventID,
		"event_type", notification.EventType,
		"attempts", notification.Attempts,
		"error", notification.Error)

	return nil
}

// Start launches all background loops and blocks until a termination signal
// or context cancellation, then shuts the loops down between ticks.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Starting engine")

	e.eventBus.Handle(events.EventDeadLetteredEvent, e.handleDeadLetterNotification)

	if err := e.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	e.processor.Start(ctx)

	if err := e.cleanup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention task: %w", err)
	}

	if e.queueSource != nil {
		if err := e.queueSource.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue source: %w", err)
		}
	}

	if e.subscription != nil {
		if err := e.subscription.Start(ctx); err != nil {
			return fmt.Errorf("failed to start subscription renewer: %w", err)
		}
	}

	e.logger.InfoContext(ctx, "Engine started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		e.logger.InfoContext(ctx, "Shutting down engine...")
	case <-ctx.Done():
		e.logger.InfoContext(ctx, "Context cancelled, shutting down engine...")
	}

	e.Stop(ctx)

	return nil
}

// Stop halts every background loop, waiting for in-flight work.
func (e *Engine) Stop(ctx context.Context) {
	if e.subscription != nil {
		e.subscription.Stop()
	}

	if e.queueSource != nil {
		if err := e.queueSource.Stop(ctx); err != nil {
			e.logger.ErrorContext(ctx, "Failed to stop queue source", "error", err)
		}
	}

	e.cleanup.Stop()
	e.processor.Stop()
}

func engineConfigFromCommand(command *cli.Command) EngineConfig {
	return EngineConfig{
		EventTypes:    command.StringSlice("event-types"),
		RedisAddr:     command.String("redis-addr"),
		RedisQueue:    command.String("redis-queue"),
		UpstreamURL:   command.String("upstream-url"),
		RetentionDays: command.Int("retention-days"),
	}
}

func runEngine(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("engine")

	logger.InfoContext(ctx, "Initializing Atomflow Engine")

	tracerProvider, err := otelhelper.InitTracer(ctx, "atomflow-engine")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	registry := cmd.NewRegistry(logger)

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persist.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "atomflow-engine", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	engine := NewEngine(logger, persist, registry, eventBus, engineConfigFromCommand(command))

	return engine.Start(ctx)
}

func runAll(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("atomflow")

	logger.InfoContext(ctx, "Initializing Atomflow")

	tracerProvider, err := otelhelper.InitTracer(ctx, "atomflow")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := tracerProvider.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	registry := cmd.NewRegistry(logger)

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persist.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "atomflow", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	api := NewAPI(logger, persist, registry, eventBus, command.String("webhook-secret"))

	go func() {
		if err := api.Start(command.Int("port")); err != nil {
			logger.ErrorContext(ctx, "API server stopped", "error", err)
		}
	}()

	engine := NewEngine(logger, persist, registry, eventBus, engineConfigFromCommand(command))

	return engine.Start(ctx)
}
