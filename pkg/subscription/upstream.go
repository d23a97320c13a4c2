package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const upstreamTimeout = 30 * time.Second

// HTTPUpstreamClient talks to an upstream subscription API over HTTP.
type HTTPUpstreamClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUpstreamClient creates a client for the upstream API at baseURL.
func NewHTTPUpstreamClient(baseURL string) *HTTPUpstreamClient {
	return &HTTPUpstreamClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: upstreamTimeout},
	}
}

// Subscribe registers a watch upstream and returns its channel id.
func (c *HTTPUpstreamClient) Subscribe(ctx context.Context, targetAddress, resourceID, resourceType string) (string, error) {
	response, err := c.post(ctx, "/subscriptions", map[string]any{
		"target_address": targetAddress,
		"resource_id":    resourceID,
		"resource_type":  resourceType,
	})
	if err != nil {
		return "", err
	}

	channelID, _ := response["channel_id"].(string)
	if channelID == "" {
		return "", fmt.Errorf("upstream response missing channel_id")
	}

	return channelID, nil
}

// Renew extends an upstream watch.
func (c *HTTPUpstreamClient) Renew(ctx context.Context, channelID string, expiration time.Time) error {
	_, err := c.post(ctx, "/subscriptions/"+channelID+"/renew", map[string]any{
		"expiration": expiration.UTC().Format(time.RFC3339),
	})

	return err
}

// Unsubscribe stops an upstream watch.
func (c *HTTPUpstreamClient) Unsubscribe(ctx context.Context, channelID string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/subscriptions/"+channelID, nil)
	if err != nil {
		return fmt.Errorf("failed to build unsubscribe request: %w", err)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("unsubscribe request failed: %w", err)
	}

	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("upstream unsubscribe returned status %d", response.StatusCode)
	}

	return nil
}

func (c *HTTPUpstreamClient) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("upstream returned status %d", response.StatusCode)
	}

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	parsed := make(map[string]any)
	if len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode upstream response: %w", err)
		}
	}

	return parsed, nil
}
