// Package hub reads model metadata from the Hugging Face Hub API.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmylchreest/hfinfer/internal/version"
	"github.com/jmylchreest/hfinfer/pkg/transport"
)

// DefaultBaseURL is the public Hub endpoint.
const DefaultBaseURL = "https://huggingface.co"

// ModelInfo is the subset of the Hub model document hfinfer reads.
type ModelInfo struct {
	ID          string   `json:"id"`
	PipelineTag string   `json:"pipeline_tag,omitempty"`
	LibraryName string   `json:"library_name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   int      `json:"downloads,omitempty"`
	Likes       int      `json:"likes,omitempty"`
	Private     bool     `json:"private,omitempty"`
}

var (
	// ErrNotFound is returned when the Hub does not know the model.
	ErrNotFound = errors.New("model not found on hub")
	// ErrNoPipelineTag is returned when the model document has no pipeline tag.
	ErrNoPipelineTag = errors.New("model has no pipeline tag")
)

// StatusError is returned for any other non-2xx Hub response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hub returned status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	// Sender overrides the transport. The default makes a single attempt
	// with a 10 second timeout, since lookups are best effort.
	Sender transport.Sender
	// HTTPClient is used by the default transport.
	HTTPClient *http.Client
}

// Client queries the Hub model API.
type Client struct {
	baseURL string
	token   string
	sender  transport.Sender
}

// New creates a Hub client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	sender := cfg.Sender
	if sender == nil {
		sender = transport.New(transport.Config{
			Timeout:    10 * time.Second,
			Retry:      transport.RetryPolicy{MaxRetries: -1},
			HTTPClient: cfg.HTTPClient,
		})
	}
	return &Client{baseURL: baseURL, token: cfg.Token, sender: sender}
}

// ModelURL returns the metadata URL for a model identifier.
func (c *Client) ModelURL(model string) string {
	segments := strings.Split(model, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/api/models/" + strings.Join(segments, "/")
}

// GetModelInfo fetches the model document.
func (c *Client) GetModelInfo(ctx context.Context, model string) (*ModelInfo, error) {
	if model == "" {
		return nil, errors.New("model identifier is required")
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    c.ModelURL(model),
		Header: h,
	})
	if err != nil {
		return nil, fmt.Errorf("hub lookup %s: %w", model, err)
	}

	switch {
	case resp.Status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, model)
	case !resp.Successful():
		return nil, &StatusError{Status: resp.Status, Body: resp.String()}
	}

	var info ModelInfo
	if err := resp.JSON(&info); err != nil {
		return nil, fmt.Errorf("decode hub response: %w", err)
	}
	return &info, nil
}

// PipelineTag returns the model's task tag.
func (c *Client) PipelineTag(ctx context.Context, model string) (string, error) {
	info, err := c.GetModelInfo(ctx, model)
	if err != nil {
		return "", err
	}
	if info.PipelineTag == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPipelineTag, model)
	}
	return info.PipelineTag, nil
}
