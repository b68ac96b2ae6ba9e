// Package apiclient calls the remote MedSync REST API.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tajious/medsync/internal/metrics"
	"github.com/tajious/medsync/internal/models"
)

const maxResponseBytes = 1 << 20

var (
	// ErrUnreachable wraps every failure to complete a request: DNS, refused
	// connections, timeouts. The request may be retried.
	ErrUnreachable = errors.New("auth server unreachable")
	ErrTimeout     = errors.New("request timed out")
	ErrBadResponse = errors.New("invalid response from server")
)

// APIError is a completed request that the API answered with a non-2xx
// status.
type APIError struct {
	Status  int
	Message string
	// GeneratedCode is the user's code when the API includes it in an error
	// body (it does for role-mismatch rejections).
	GeneratedCode string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

type Client struct {
	baseURL         string
	http            *http.Client
	metrics         *metrics.Metrics
	scheduleTimeout time.Duration
	scheduleRetries uint64
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithScheduleControl sets the per-attempt timeout and retry count used by
// the doctor schedule endpoints.
func WithScheduleControl(timeout time.Duration, retries int) Option {
	return func(c *Client) {
		c.scheduleTimeout = timeout
		if retries < 0 {
			retries = 0
		}
		c.scheduleRetries = uint64(retries)
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: timeout},
		scheduleTimeout: 12 * time.Second,
		scheduleRetries: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   models.LooseString `json:"error"`
	Message models.LooseString `json:"message"`
	User    struct {
		GeneratedCode models.LooseString `json:"generated_code"`
	} `json:"user"`
}

// do sends one request and returns the raw 2xx body. fallback is the
// message used when an error body carries none.
func (c *Client) do(ctx context.Context, endpoint, method, path, bearer string, body any, fallback string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrUnreachable, ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: fallback}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			if msg := eb.Message.String(); msg != "" {
				apiErr.Message = msg
			} else if msg := eb.Error.String(); msg != "" {
				apiErr.Message = msg
			}
			apiErr.GeneratedCode = eb.User.GeneratedCode.String()
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}
	return raw, nil
}

func decodeInto(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

type timeout interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
