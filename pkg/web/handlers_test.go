package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/persistence"
	"github.com/rush86999/atom-sub011/pkg/persistence/file"
	"github.com/rush86999/atom-sub011/pkg/protocol"
	"github.com/rush86999/atom-sub011/pkg/registry"
	"github.com/rush86999/atom-sub011/pkg/web"
	"github.com/rush86999/atom-sub011/pkg/webhook"
	"github.com/rush86999/atom-sub011/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofiber/fiber/v3"
)

const testWebhookSecret = "test-secret"

type stubActionFactory struct{}

func (f *stubActionFactory) ID() string             { return "stub" }
func (f *stubActionFactory) Name() string           { return "Stub" }
func (f *stubActionFactory) Description() string    { return "test action" }
func (f *stubActionFactory) Schema() map[string]any { return nil }

func (f *stubActionFactory) Create(_ map[string]any) (protocol.Action, error) {
	return &stubAction{}, nil
}

type stubAction struct{}

func (a *stubAction) Execute(_ context.Context, _ models.ActionContext, _ *slog.Logger) (any, error) {
	return map[string]any{"done": true}, nil
}

type testEnv struct {
	app         *fiber.App
	persistence persistence.Persistence
	service     *workflow.Service
	verifier    *webhook.Verifier
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	p := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterAction(&stubActionFactory{})

	service := workflow.NewService(p, reg, logger)
	executor := workflow.NewExecutor(p.Executions(), reg, nil, logger)
	verifier := webhook.NewVerifier(testWebhookSecret, logger)
	parser := webhook.NewParser(logger)

	handlers := web.NewAPIHandlers(service, executor, p, reg, verifier, parser)

	app := fiber.New()

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

	return &testEnv{app: app, persistence: p, service: service, verifier: verifier}
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func validCreateRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:        "Notify on new files",
		Description: "Runs the stub action when a file is created",
		Trigger:     models.TriggerSpec{Type: "file_created"},
		Actions:     []models.ActionSpec{{Type: "stub", Config: map[string]any{}}},
		Owner:       "test-user",
	}
}

func TestCreateWorkflow(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/workflows", validCreateRequest())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	wf, ok := body["workflow"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, wf["id"])
	assert.Equal(t, "Notify on new files", wf["name"])
	assert.Equal(t, "active", wf["status"])
}

func TestCreateWorkflowValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *web.CreateWorkflowRequest)
		rawBody string
	}{
		{
			name:   "missing name",
			mutate: func(req *web.CreateWorkflowRequest) { req.Name = "" },
		},
		{
			name:   "name too short",
			mutate: func(req *web.CreateWorkflowRequest) { req.Name = "ab" },
		},
		{
			name:   "missing trigger type",
			mutate: func(req *web.CreateWorkflowRequest) { req.Trigger = models.TriggerSpec{} },
		},
		{
			name:   "no actions",
			mutate: func(req *web.CreateWorkflowRequest) { req.Actions = nil },
		},
		{
			name: "unknown action type",
			mutate: func(req *web.CreateWorkflowRequest) {
				req.Actions = []models.ActionSpec{{Type: "does-not-exist"}}
			},
		},
		{
			name:    "invalid json",
			rawBody: "{not json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestApp(t)

			var resp *http.Response

			if tt.rawBody != "" {
				req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBufferString(tt.rawBody))
				req.Header.Set("Content-Type", "application/json")

				var err error
				resp, err = env.app.Test(req)
				require.NoError(t, err)
			} else {
				request := validCreateRequest()
				tt.mutate(&request)
				resp = postJSON(t, env.app, "/workflows", request)
			}

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])

			stored, err := env.service.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/missing-id", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestWorkflowLifecycle(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/workflows", validCreateRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody(t, resp)["workflow"].(map[string]any)
	id := created["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/workflows/"+id, nil)
	getResp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	fetched := decodeBody(t, getResp)["workflow"].(map[string]any)
	assert.Equal(t, id, fetched["id"])

	newName := "Renamed workflow"
	updateBody, err := json.Marshal(web.UpdateWorkflowRequest{Name: &newName})
	require.NoError(t, err)

	updateReq := httptest.NewRequest(http.MethodPut, "/workflows/"+id, bytes.NewBuffer(updateBody))
	updateReq.Header.Set("Content-Type", "application/json")

	updateResp, err := env.app.Test(updateReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, updateResp.StatusCode)

	updated := decodeBody(t, updateResp)["workflow"].(map[string]any)
	assert.Equal(t, newName, updated["name"])
	assert.Equal(t, id, updated["id"])

	deleteReq := httptest.NewRequest(http.MethodDelete, "/workflows/"+id, nil)
	deleteResp, err := env.app.Test(deleteReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, deleteResp.StatusCode)

	_, err = env.service.FetchByID(context.Background(), id)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecuteWorkflow(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/workflows", validCreateRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := decodeBody(t, resp)["workflow"].(map[string]any)["id"].(string)

	execResp := postJSON(t, env.app, "/workflows/"+id+"/execute", web.ExecuteWorkflowRequest{
		TriggerData: map[string]any{"resource_id": "file-1"},
	})
	assert.Equal(t, http.StatusOK, execResp.StatusCode)

	body := decodeBody(t, execResp)
	assert.Equal(t, true, body["success"])

	execution, ok := body["execution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(models.ExecutionStatusCompleted), execution["status"])
	assert.Equal(t, id, execution["workflow_id"])

	executionID := execution["id"].(string)

	detailReq := httptest.NewRequest(http.MethodGet, "/executions/"+executionID, nil)
	detailResp, err := env.app.Test(detailReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, detailResp.StatusCode)

	detail := decodeBody(t, detailResp)
	steps, ok := detail["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)

	step := steps[0].(map[string]any)
	assert.Equal(t, string(models.StepStatusCompleted), step["status"])
	assert.Equal(t, "stub", step["action_type"])

	listReq := httptest.NewRequest(http.MethodGet, "/workflows/"+id+"/executions", nil)
	listResp, err := env.app.Test(listReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	executions, ok := decodeBody(t, listResp)["executions"].([]any)
	require.True(t, ok)
	assert.Len(t, executions, 1)

	statsReq := httptest.NewRequest(http.MethodGet, "/workflows/"+id+"/stats", nil)
	statsResp, err := env.app.Test(statsReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, statsResp.StatusCode)

	stats, ok := decodeBody(t, statsResp)["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["total_executions"])
	assert.Equal(t, float64(1), stats["success_rate"])
}

func TestExecuteInactiveWorkflowRejected(t *testing.T) {
	env := setupTestApp(t)

	request := validCreateRequest()
	request.Status = string(models.WorkflowStatusInactive)

	resp := postJSON(t, env.app, "/workflows", request)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := decodeBody(t, resp)["workflow"].(map[string]any)["id"].(string)

	execResp := postJSON(t, env.app, "/workflows/"+id+"/execute", web.ExecuteWorkflowRequest{})
	assert.Equal(t, http.StatusConflict, execResp.StatusCode)

	body := decodeBody(t, execResp)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "not active")

	executions, err := env.persistence.Executions().ListByWorkflow(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestGetWorkflowExecutionsLimitCapped(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/workflows", validCreateRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := decodeBody(t, resp)["workflow"].(map[string]any)["id"].(string)

	base := time.Now().UTC()
	for i := range web.MaxExecutionListLimit + 5 {
		execution := &models.WorkflowExecution{
			ID:         "exec-" + strconv.Itoa(i),
			WorkflowID: id,
			Status:     models.ExecutionStatusCompleted,
			StartTime:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, env.persistence.Executions().SaveExecution(context.Background(), execution))
	}

	req := httptest.NewRequest(http.MethodGet, "/workflows/"+id+"/executions?limit=1000000", nil)
	listResp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	executions, ok := decodeBody(t, listResp)["executions"].([]any)
	require.True(t, ok)
	assert.Len(t, executions, web.MaxExecutionListLimit)
}

func TestGetWorkflowExecutionsInvalidLimit(t *testing.T) {
	env := setupTestApp(t)

	resp := postJSON(t, env.app, "/workflows", validCreateRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := decodeBody(t, resp)["workflow"].(map[string]any)["id"].(string)

	for _, limit := range []string{"abc", "0", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/workflows/"+id+"/executions?limit="+limit, nil)
		listResp, err := env.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, listResp.StatusCode)
		assert.Equal(t, false, decodeBody(t, listResp)["success"])
	}
}

func signedWebhookRequest(t *testing.T, verifier *webhook.Verifier, payload []byte, at time.Time) *http.Request {
	t.Helper()

	timestamp := strconv.FormatInt(at.Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.TimestampHeader, timestamp)
	req.Header.Set(webhook.SignatureHeader, verifier.Sign(payload, timestamp))

	return req
}

func TestReceiveWebhook(t *testing.T) {
	env := setupTestApp(t)

	payload := []byte(`{"resource_state":"add","resource_id":"file-1","user_id":"user-1"}`)

	resp, err := env.app.Test(signedWebhookRequest(t, env.verifier, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["events_received"])

	pending, err := env.persistence.Events().ListPending(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "file_created", pending[0].EventType)
	assert.Equal(t, "file-1", pending[0].ResourceID)
	assert.False(t, pending[0].Processed)
}

func TestReceiveWebhookStaleTimestamp(t *testing.T) {
	env := setupTestApp(t)

	payload := []byte(`{"resource_state":"add","resource_id":"file-1"}`)

	resp, err := env.app.Test(signedWebhookRequest(t, env.verifier, payload, time.Now().Add(-301*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	pending, err := env.persistence.Events().ListPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReceiveWebhookInvalidSignature(t *testing.T) {
	env := setupTestApp(t)

	payload := []byte(`{"resource_state":"add","resource_id":"file-1"}`)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", bytes.NewBuffer(payload))
	req.Header.Set(webhook.TimestampHeader, timestamp)
	req.Header.Set(webhook.SignatureHeader, "sha256=deadbeef")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	pending, err := env.persistence.Events().ListPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReceiveWebhookUnknownPayload(t *testing.T) {
	env := setupTestApp(t)

	payload := []byte(`{"something":"else"}`)

	resp, err := env.app.Test(signedWebhookRequest(t, env.verifier, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	pending, err := env.persistence.Events().ListPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "healthy", body["status"])
}
