// Package apiclient provides a client for the Document Intelligence OCR backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/models"
)

const (
	// DefaultBaseURL is the base URL of the document API.
	DefaultBaseURL = "http://localhost:8001"

	// DefaultLegacyBaseURL serves the raw download and extraction endpoints.
	DefaultLegacyBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10
)

// Client is an OCR backend API client.
type Client struct {
	baseURL       string
	legacyBaseURL string
	httpClient    *http.Client
	logger        arbor.ILogger
	limiter       *rate.Limiter
	validate      *validator.Validate
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLegacyBaseURL sets the base URL used by the extraction path.
func WithLegacyBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.legacyBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout on the current HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit. Zero or less disables limiting.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// NewClient creates a new OCR backend client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		legacyBaseURL: DefaultLegacyBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig creates a client from the [backend] config section.
func NewClientFromConfig(config common.BackendConfig, logger arbor.ILogger) *Client {
	return NewClient(
		WithBaseURL(config.BaseURL),
		WithLegacyBaseURL(config.LegacyBaseURL),
		WithTimeout(config.TimeoutDuration()),
		WithRateLimit(config.RateLimit),
		WithLogger(logger),
	)
}

// BaseURL returns the document API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ocr API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// request describes one backend call.
type request struct {
	method      string
	base        string
	path        string
	params      url.Values
	body        io.Reader
	contentType string
	accept      string
}

// do performs a request and returns the response of a 2xx status.
// The caller must close the response body.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := r.base + r.path
	if len(r.params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, r.params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	contentType := r.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", accept)

	if c.logger != nil {
		c.logger.Debug().
			Str("method", r.method).
			Str("url", r.base+r.path).
			Msg("OCR API request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", r.method, r.path, models.ErrNetworkFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.Status),
			Endpoint:   r.path,
		}
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", r.method).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("OCR API response")
	}

	return resp, nil
}

// errorMessage prefers the backend's {"detail": "..."} message over the raw body.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Detail  interface{} `json:"detail"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}

// call performs a request and decodes and validates a JSON response into result.
// A nil result discards the body.
func (c *Client) call(ctx context.Context, r request, result interface{}) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", models.ErrInvalidPayload, r.path, err)
	}

	if err := c.validate.Struct(result); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrInvalidPayload, r.path, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, base, path string, params url.Values, result interface{}) error {
	return c.call(ctx, request{method: http.MethodGet, base: base, path: path, params: params}, result)
}

func (c *Client) post(ctx context.Context, base, path string, params url.Values, payload interface{}, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.call(ctx, request{method: http.MethodPost, base: base, path: path, params: params, body: body}, result)
}

func (c *Client) delete(ctx context.Context, base, path string, result interface{}) error {
	return c.call(ctx, request{method: http.MethodDelete, base: base, path: path}, result)
}

func documentPath(id models.DocumentID, suffix string) string {
	return "/api/v1/documents/" + url.PathEscape(id.String()) + suffix
}
