// Package transport sends requests to inference endpoints with a per-attempt
// timeout and a fixed-delay retry policy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmylchreest/hfinfer/internal/logger"
)

// Request is an outbound HTTP request with a buffered body.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// URL and Method echo the request that produced this response.
	URL    string
	Method string

	// Attempts is the number of HTTP round trips made, including retries.
	Attempts int
}

// Successful reports whether the status is 2xx.
func (r *Response) Successful() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the body as a string.
func (r *Response) String() string {
	return string(r.Body)
}

// Sender sends a request and returns the final response. A non-2xx status is
// not an error; only failures to obtain any response are.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// RetryPolicy controls retries of transport failures and retryable statuses.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the fixed wait between attempts. Zero means one second;
	// negative retries immediately.
	Delay time.Duration
	// OnRetry, if set, is called before each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns two retries with a one second delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Delay:      time.Second,
	}
}

// Config configures a Client.
type Config struct {
	// Timeout bounds each attempt, including reading the body.
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
}

// DefaultConfig returns a 30 second timeout and DefaultRetryPolicy.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryPolicy(),
	}
}

// Client is the default Sender backed by net/http.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a Client. Zero values in cfg fall back to DefaultConfig; a
// negative MaxRetries disables retries and a negative Delay removes the wait.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = def.Retry.MaxRetries
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = def.Retry.Delay
	}
	if cfg.Retry.Delay < 0 {
		cfg.Retry.Delay = 0
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client}
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Send performs the request, retrying network failures and retryable
// statuses. When retries run out on a retryable status the last response is
// returned so the caller can classify it.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	policy := c.cfg.Retry

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, req)
		if err == nil && !ShouldRetry(resp.Status) {
			resp.Attempts = attempt + 1
			return resp, nil
		}

		if attempt >= policy.MaxRetries || ctx.Err() != nil {
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
			}
			resp.Attempts = attempt + 1
			return resp, nil
		}

		if err == nil {
			err = fmt.Errorf("http status %d", resp.Status)
		}
		logger.DebugContext(ctx, "retrying request",
			"url", req.URL,
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"delay", policy.Delay,
			"error", err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, policy.Delay)
		}

		if policy.Delay > 0 {
			timer := time.NewTimer(policy.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, ctx.Err())
			case <-timer.C:
			}
		}
	}
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
		URL:    httpReq.URL.String(),
		Method: method,
	}, nil
}

// ShouldRetry reports whether a status is worth another attempt.
func ShouldRetry(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
