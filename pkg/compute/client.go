package compute

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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jdziat/durable-training-queue/pkg/core"
	"github.com/jdziat/durable-training-queue/pkg/internal/retry"
)

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 4 << 10

// ErrEmptyHandle is returned when the API accepts a launch without naming it.
var ErrEmptyHandle = errors.New("compute: launch response has no execution handle")

// APIError is a non-2xx response from the compute API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("compute: API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("compute: API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// LaunchRequest is the body of POST /executions.
type LaunchRequest struct {
	RequestID      string         `json:"request_id"`
	Params         core.JobParams `json:"params"`
	Timestamp      string         `json:"timestamp"`
	OutputLocation string         `json:"output_location"`
}

// LaunchResponse is the body returned for an accepted launch.
type LaunchResponse struct {
	Handle         string `json:"handle"`
	Name           string `json:"name,omitempty"`
	OutputLocation string `json:"output_location,omitempty"`
}

// ExecutionResponse is the body of GET /executions/{handle}.
type ExecutionResponse struct {
	Handle          string     `json:"handle"`
	State           string     `json:"state"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// HTTPClient talks to a JSON compute API. It implements core.Launcher and
// core.StatusProvider.
type HTTPClient struct {
	baseURL string
	opts    *Options
	logger  *slog.Logger
}

var (
	_ core.Launcher       = (*HTTPClient)(nil)
	_ core.StatusProvider = (*HTTPClient)(nil)
)

// NewHTTPClient creates a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("compute: invalid base URL %q", baseURL)
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		opts:    options,
		logger:  options.Logger,
	}, nil
}

// Launch starts one execution. It is attempted exactly once: a failed launch
// may still have created an execution, so it is never retried here.
func (c *HTTPClient) Launch(ctx context.Context, p core.JobParams, timestamp string) (string, string, error) {
	req := LaunchRequest{
		RequestID:      uuid.New().String(),
		Params:         p,
		Timestamp:      timestamp,
		OutputLocation: OutputLocation(c.opts.OutputPrefix, p, timestamp),
	}

	var resp LaunchResponse
	if err := c.do(ctx, http.MethodPost, "/executions", req.RequestID, req, &resp); err != nil {
		return "", "", err
	}

	handle := resp.Handle
	if handle == "" {
		handle = resp.Name
	}
	if handle == "" {
		return "", "", ErrEmptyHandle
	}
	output := resp.OutputLocation
	if output == "" {
		output = req.OutputLocation
	}

	c.logger.Debug("execution started", "execution_handle", handle, "request_id", req.RequestID)
	return handle, output, nil
}

// Status reads the state of an execution, retrying transient failures.
func (c *HTTPClient) Status(ctx context.Context, handle string) (*core.ExecutionStatus, error) {
	if handle == "" {
		return nil, errors.New("compute: empty execution handle")
	}

	var resp ExecutionResponse
	err := retry.Do(ctx, c.opts.StatusRetry, func() error {
		err := c.do(ctx, http.MethodGet, "/executions/"+url.PathEscape(handle), uuid.New().String(), nil, &resp)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	state, known := ParseState(resp.State)
	if !known {
		c.logger.Warn("unknown execution state", "execution_handle", handle, "state", resp.State)
	}

	st := &core.ExecutionStatus{
		State:     state,
		RawState:  resp.State,
		StartTime: resp.StartTime,
		EndTime:   resp.EndTime,
		Detail:    resp.Message,
	}
	if resp.DurationSeconds != nil {
		d := time.Duration(*resp.DurationSeconds * float64(time.Second))
		st.Duration = &d
	}
	return st, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, requestID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("compute: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("compute: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("compute: rate limit: %w", err)
		}
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("compute: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("compute: decode response: %w", err)
	}
	return nil
}
