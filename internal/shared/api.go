package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIClient makes bearer-authenticated JSON requests against a REST endpoint.
//
// It backs the Vercel Blob and KV REST clients.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a client for baseURL. A nil client falls back to [http.DefaultClient].
func NewAPIClient(baseURL, token string, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: client}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	return nil
}

// Err converts a non-2xx response into an [ErrUpstream] error carrying the service's message.
func (r *APIResponse) Err(op string) error {
	if r.OK() {
		return nil
	}

	var payload struct {
		Error any `json:"error"`
	}
	msg := strings.TrimSpace(string(r.Body))
	if json.Unmarshal(r.Body, &payload) == nil && payload.Error != nil {
		switch e := payload.Error.(type) {
		case string:
			msg = e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				msg = m
			}
		}
	}

	if r.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %s", ErrNotFound, op, msg)
	}
	return fmt.Errorf("%w: %s: status %d: %s", ErrUpstream, op, r.StatusCode, msg)
}

// Do sends a request to path (or to an absolute URL) and reads the whole response.
func (a *APIClient) Do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*APIResponse, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = a.baseURL + path
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// PostJSON encodes v as the JSON body of a POST request.
func (a *APIClient) PostJSON(ctx context.Context, path string, v any) (*APIResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return a.Do(ctx, http.MethodPost, path, bytes.NewReader(data), map[string]string{"Content-Type": "application/json"})
}
