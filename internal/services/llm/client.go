package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hackreview/internal/services"
)

const (
	defaultHTTPTimeout = 180 * time.Second
	maxResponseBytes   = 32 << 20
)

// DefaultHTTPTimeout returns the default timeout used for provider requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client issues single-attempt provider requests and classifies failures
// into the services error markers. Retrying is the caller's concern.
type Client struct {
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client whose requests time out after timeoutSeconds.
func NewClient(timeoutSeconds int, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	client := &Client{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError carries a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// RetryAfter exposes the server supplied delay for the retry loop.
func (e *StatusError) RetryAfter() time.Duration {
	return e.retryAfter
}

// PostJSON encodes payload, posts it to endpoint, and returns the raw
// response body.
func (c *Client) PostJSON(ctx context.Context, endpoint string, headers map[string]string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageOf(ctx), "llm request", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	_, body, err := c.Do(req)
	return body, err
}

// Do sends req once. Transport failures, non-2xx statuses, and oversize
// bodies come back wrapped with a services marker.
func (c *Client) Do(req *http.Request) (http.Header, []byte, error) {
	ctx := req.Context()
	stage := stageOf(ctx)
	op := "llm request"
	if req.URL != nil {
		op = "llm " + strings.ToLower(req.Method) + " " + req.URL.Host
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, classifyTransportError(stage, op, c.timeout(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.Header, nil, classifyTransportError(stage, op, c.timeout(), err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			retryAfter: retryAfter,
		}
		return resp.Header, body, services.Wrap(markerForStatus(resp.StatusCode), stage, op, "", statusErr)
	}
	return resp.Header, body, nil
}

func (c *Client) timeout() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func markerForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.ErrAuth
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case code == http.StatusTooManyRequests, code == 529:
		return services.ErrRateLimit
	case code >= http.StatusInternalServerError:
		// Overloaded upstream; retried like a rate limit.
		return services.ErrRateLimit
	default:
		return services.ErrInvalidResponse
	}
}

func classifyTransportError(stage, op string, timeout time.Duration, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, op, fmt.Sprintf("deadline exceeded (timeout=%s)", timeout), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stage, op, fmt.Sprintf("timeout=%s", timeout), err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stage, op, fmt.Sprintf("timeout=%s", timeout), err)
	}
	return services.Wrap(services.ErrTransient, stage, op, "http error", err)
}

// InvalidResponse wraps a payload that could not be interpreted.
func InvalidResponse(ctx context.Context, op string, body []byte, err error) error {
	return services.Wrap(
		services.ErrInvalidResponse,
		stageOf(ctx),
		op,
		"payload snippet: "+summarizePayloadSnippet(string(body)),
		err,
	)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func stageOf(ctx context.Context) string {
	stage, _ := services.StageFromContext(ctx)
	return stage
}
