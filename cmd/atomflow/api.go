package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"

	"github.com/rush86999/atom-sub011/pkg/cmd"
	"github.com/rush86999/atom-sub011/pkg/eventbus"
	"github.com/rush86999/atom-sub011/pkg/log"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/registry"
	"github.com/rush86999/atom-sub011/pkg/web"
	"github.com/rush86999/atom-sub011/pkg/webhook"
	"github.com/rush86999/atom-sub011/pkg/workflow"
)

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	registry      *registry.Registry
	eventBus      eventbus.EventBus
	webhookSecret string
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	webhookSecret string,
) *API {
	return &API{
		logger:        logger,
		persistence:   persistence,
		registry:      registry,
		eventBus:      eventBus,
		webhookSecret: webhookSecret,
	}
}

func (a *API) App() *fiber.App {
	workflowService := workflow.NewService(a.persistence, a.registry, a.logger)
	executor := workflow.NewExecutor(a.persistence.Executions(), a.registry, a.eventBus, a.logger)
	verifier := webhook.NewVerifier(a.webhookSecret, a.logger)
	parser := webhook.NewParser(a.logger)

	handlers := web.NewAPIHandlers(workflowService, executor, a.persistence, a.registry, verifier, parser)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Atomflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)
	w.Get("/:id/stats", handlers.GetWorkflowStats)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Post("/webhooks/:provider", handlers.ReceiveWebhook)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}

func runAPI(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Atomflow API")

	registry := cmd.NewRegistry(logger)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "atomflow-api", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	api := NewAPI(logger, persistence, registry, eventBus, command.String("webhook-secret"))

	return api.Start(command.Int("port"))
}
