package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/webhook"
	"github.com/rush86999/atom-sub011/pkg/workflow"
)

// success wraps a payload in the standard response envelope.
func success(c fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	return c.Status(status).JSON(body)
}

func fail(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func badRequest(c fiber.Ctx, message string) error {
	return fail(c, fiber.StatusBadRequest, message)
}

func notFound(c fiber.Ctx, message string) error {
	return fail(c, fiber.StatusNotFound, message)
}

func unauthorized(c fiber.Ctx, message string) error {
	return fail(c, fiber.StatusUnauthorized, message)
}

func internalError(c fiber.Ctx) error {
	// Internal details are logged, never exposed.
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

// handleServiceError maps service and store errors to envelope responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsValidationError(err):
		return badRequest(c, err.Error())
	case errors.Is(err, workflow.ErrWorkflowInactive):
		return fail(c, fiber.StatusConflict, err.Error())
	case webhook.IsAuthError(err):
		return unauthorized(c, err.Error())
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")
	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")
	case persistence.IsSubscriptionNotFound(err):
		return notFound(c, "subscription not found")
	default:
		return internalError(c)
	}
}
