// Package web provides HTTP handlers and REST API endpoints for workflow
// management, execution history, and webhook ingestion.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/registry"
	"github.com/rush86999/atom-sub011/pkg/webhook"
	"github.com/rush86999/atom-sub011/pkg/workflow"
)

// DefaultExecutionListLimit bounds history responses when no limit is given;
// MaxExecutionListLimit caps what a caller may request.
const (
	DefaultExecutionListLimit = 50
	MaxExecutionListLimit     = 200
)

type APIHandlers struct {
	workflowService *workflow.Service
	executor        *workflow.Executor
	persistence     persistence.Persistence
	registry        *registry.Registry
	verifier        *webhook.Verifier
	parser          *webhook.Parser
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *workflow.Service,
	executor *workflow.Executor,
	persistence persistence.Persistence,
	registry *registry.Registry,
	verifier *webhook.Verifier,
	parser *webhook.Parser,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		executor:        executor,
		persistence:     persistence,
		registry:        registry,
		verifier:        verifier,
		parser:          parser,
		validator:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"workflow": wf})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
		Status:      models.WorkflowStatus(req.Status),
		Owner:       req.Owner,
	}

	created, err := h.workflowService.Create(c.Context(), wf)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusCreated, fiber.Map{"workflow": created})
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Trigger != nil {
		existing.Trigger = *req.Trigger
	}

	if req.Actions != nil {
		existing.Actions = req.Actions
	}

	if req.Status != nil {
		existing.Status = models.WorkflowStatus(*req.Status)
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"workflow": updated})
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"message": "workflow deleted"})
}

// ExecuteWorkflow runs a workflow synchronously with caller-supplied trigger
// data and returns the finished execution.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	wf, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	execution, err := h.executor.Execute(c.Context(), wf, req.TriggerData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"execution": execution})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := DefaultExecutionListLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = min(parsed, MaxExecutionListLimit)
	}

	if _, err := h.workflowService.FetchByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	executions, err := h.persistence.Executions().ListByWorkflow(c.Context(), id, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"executions": executions})
}

// GetExecution returns an execution together with its steps in action order.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().ExecutionByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	steps, err := h.persistence.Executions().StepsByExecution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"execution": execution,
		"steps":     steps,
	})
}

func (h *APIHandlers) GetWorkflowStats(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.workflowService.FetchByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	stats, err := h.persistence.Executions().StatsByWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{"stats": stats})
}

// ReceiveWebhook authenticates a webhook delivery and persists its events as
// pending trigger events. Verification failures create nothing.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	body := c.Body()

	err := h.verifier.Verify(body, c.Get(webhook.SignatureHeader), c.Get(webhook.TimestampHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	events, err := h.parser.Parse(body)
	if err != nil {
		return badRequest(c, err.Error())
	}

	for _, event := range events {
		if err := h.persistence.Events().Save(c.Context(), event); err != nil {
			return handleServiceError(c, err)
		}
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"message":         "events accepted",
		"events_received": len(events),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()

	repositoryCheck := "ok"
	repOk := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		repositoryCheck = err.Error()
		repOk = false
	}

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"success": regOk && repOk,
		"status":  status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
