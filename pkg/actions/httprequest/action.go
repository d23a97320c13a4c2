// Package httprequest provides an action that calls an external HTTP API.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rush86999/atom-sub011/pkg/models"
	"github.com/rush86999/atom-sub011/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// ActionFactory builds HTTPRequestAction instances.
type ActionFactory struct{}

// NewActionFactory creates a new instance of ActionFactory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "http_request"
}

func (*ActionFactory) Name() string {
	return "HTTP Request"
}

func (*ActionFactory) Description() string {
	return "Performs an HTTP request against an external API and returns the response."
}

// Schema returns the JSON schema for the action configuration.
func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method, defaults to GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body",
			},
		},
		"required": []string{"url"},
	}
}

// Create creates a new HTTPRequestAction instance with the provided configuration.
func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewHTTPRequestAction(config)
}

// HTTPRequestAction performs an HTTP request.
type HTTPRequestAction struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	client *http.Client
}

func NewHTTPRequestAction(config map[string]any) (*HTTPRequestAction, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http_request action requires a url")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	return &HTTPRequestAction{
		Method:  strings.ToUpper(method),
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: defaultTimeout,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (a *HTTPRequestAction) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "http_request", "method", a.Method, "url", a.URL)
	logger.InfoContext(ctx, "Executing HTTP request action")

	var bodyReader io.Reader
	if a.Body != "" {
		bodyReader = strings.NewReader(a.Body)
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, a.Method, a.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsedBody any
	if err := json.Unmarshal(bodyBytes, &parsedBody); err != nil {
		parsedBody = string(bodyBytes)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status", resp.StatusCode)

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        parsedBody,
	}, nil
}
