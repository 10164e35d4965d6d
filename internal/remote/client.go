// Package remote is the HTTP client for the timeline server. It turns
// server responses back into the typed timeline errors so callers on the
// client side can tell validation, conflict, and transient failures apart.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/framecut/timeline/internal/api"
	"github.com/framecut/timeline/internal/gateway"
	"github.com/framecut/timeline/internal/logging"
	"github.com/framecut/timeline/internal/timeline"
)

// HTTPError is a non-2xx response the server did not describe with a
// timeline error code.
type HTTPError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("timeline server: HTTP %d %s: %s", e.StatusCode, e.Code, e.Body)
	}
	return fmt.Sprintf("timeline server: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the status means the request may succeed
// unchanged later: rate limiting and proxy/gateway failures. A bare 500
// is permanent since the server reports its own retryable failures typed.
func (e *HTTPError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.WithComponent(logger, "remote"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, req api.CreateProjectRequest) (*timeline.Project, error) {
	var out timeline.Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]*timeline.Project, error) {
	var out api.ProjectsResponse
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*timeline.Project, error) {
	var out timeline.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProjectScenes reads the canonical scenes and the revision they belong to.
func (c *Client) GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error) {
	var out api.ScenesResponse
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/scenes", nil, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Scenes, out.Revision, nil
}

// Write sends one action payload to the gateway.
func (c *Client) Write(ctx context.Context, req gateway.WriteRequest) (*gateway.WriteResult, error) {
	path := fmt.Sprintf("/projects/%s/actions/%s", url.PathEscape(req.ProjectID), url.PathEscape(string(req.ActionType)))
	body := api.ActionRequest{
		Direction:      req.Direction,
		Payload:        req.Payload,
		ClientRevision: req.ClientRevision,
		IdempotencyKey: req.IdempotencyKey,
	}
	headers := map[string]string{api.IdempotencyKeyHeader: req.IdempotencyKey}

	var out gateway.WriteResult
	err := c.do(ctx, http.MethodPost, path, headers, body, &out)
	if err != nil {
		var terr *timeline.Error
		if errors.As(err, &terr) && terr.Code == timeline.CodeConflict && req.ClientRevision != nil {
			return nil, timeline.NewConflictError(req.ProjectID, *req.ClientRevision, terr.CurrentRevision)
		}
		return nil, err
	}

	c.logger.Debug("write acknowledged",
		"project_id", req.ProjectID,
		"idempotency_key", req.IdempotencyKey,
		"revision", out.NewRevision,
		"replayed", out.Replayed,
	)
	return &out, nil
}

func (c *Client) ExportEDL(ctx context.Context, projectID string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/export.edl", nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", timeline.NewTransientError("read export", err)
	}
	return string(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, headers, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// The request may well have been applied; a retry with the same
		// idempotency key will replay it.
		return timeline.NewTransientError("decode response", err)
	}
	return nil
}

// send performs the request and returns the response only for 2xx.
func (c *Client) send(ctx context.Context, method, path string, headers map[string]string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString()[:8])
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, timeline.NewTransientError(method+" "+path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

// decodeError maps an error response onto the timeline error taxonomy.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	switch timeline.ErrorCode(body.Code) {
	case timeline.CodeValidation:
		return &timeline.Error{Code: timeline.CodeValidation, Message: body.Error}
	case timeline.CodeConflict:
		e := &timeline.Error{Code: timeline.CodeConflict, Message: body.Error}
		if body.CurrentRevision != nil {
			e.CurrentRevision = *body.CurrentRevision
		}
		return e
	case timeline.CodeTransient:
		return timeline.NewTransientError(body.Error, nil)
	case timeline.CodeFatal:
		return timeline.NewFatalError(body.Error, nil)
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Code: body.Code, Body: body.Error}
	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusBadRequest:
		return &timeline.Error{Code: timeline.CodeValidation, Message: body.Error, Err: httpErr}
	case httpErr.IsRetryable():
		return timeline.NewTransientError(body.Error, httpErr)
	default:
		return timeline.NewFatalError(body.Error, httpErr)
	}
}
