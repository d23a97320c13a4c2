// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/rush86999/atom-sub011/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string              `json:"name"        validate:"required,min=3"`
	Description string              `json:"description"`
	Trigger     models.TriggerSpec  `json:"trigger"     validate:"required"`
	Actions     []models.ActionSpec `json:"actions"     validate:"required,min=1,dive"`
	Status      string              `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Owner       string              `json:"owner"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string             `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string             `json:"description,omitempty"`
	Trigger     *models.TriggerSpec `json:"trigger,omitempty"`
	Actions     []models.ActionSpec `json:"actions,omitempty"     validate:"omitempty,min=1,dive"`
	Status      *string             `json:"status,omitempty"      validate:"omitempty,oneof=active inactive"`
}

// ExecuteWorkflowRequest represents the request body for manually triggering a
// workflow run.
type ExecuteWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
}
