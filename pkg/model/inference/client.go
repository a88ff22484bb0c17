package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/hfinfer/internal/logger"
	"github.com/jmylchreest/hfinfer/internal/version"
	"github.com/jmylchreest/hfinfer/pkg/hub"
	"github.com/jmylchreest/hfinfer/pkg/model/registry"
	"github.com/jmylchreest/hfinfer/pkg/transport"
)

// DefaultBaseURL is the Inference API root that entry URLs are appended to.
const DefaultBaseURL = "https://api-inference.huggingface.co/models/"

// Config holds the client settings. Only APIToken is required.
type Config struct {
	APIToken string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	HubURL   string `mapstructure:"hub_url" yaml:"hub_url" validate:"omitempty,url"`

	// Models and TaskTypes default to the registry defaults when nil.
	Models    map[string]registry.Entry `mapstructure:"-" yaml:"-"`
	TaskTypes map[string]registry.Type  `mapstructure:"-" yaml:"-"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	// MaxRetries of zero means the default of 2; negative disables retries.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryDelay of zero means the default of 1s; negative retries immediately.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used by the default transport and the
// default Hub lookup.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSender replaces the transport entirely.
func WithSender(s transport.Sender) Option {
	return func(c *Client) { c.sender = s }
}

// WithLookup sets the metadata provider used to classify unknown models.
// Passing nil disables remote lookups.
func WithLookup(p ModelInfoProvider) Option {
	return func(c *Client) {
		c.lookup = p
		c.lookupSet = true
	}
}

// WithObserver sets the call observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger for diagnostics and failure records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRegistry sets the model table, taking precedence over Config.Models
// and Config.TaskTypes.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// Client calls Hugging Face inference models. After New it holds no mutable
// state and is safe for concurrent use.
type Client struct {
	token   string
	baseURL string

	httpClient *http.Client
	sender     transport.Sender
	lookup     ModelInfoProvider
	lookupSet  bool
	registry   *registry.Registry
	resolver   *Resolver
	observer   Observer
	log        *slog.Logger
}

// New creates a Client. A blank token fails with ErrEmptyToken.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, newError(&Error{Kind: KindEmptyToken, Cause: ErrEmptyToken})
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		token:   cfg.APIToken,
		baseURL: cfg.BaseURL,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.Logger()
	}
	if c.registry == nil {
		models, tasks := cfg.Models, cfg.TaskTypes
		if models == nil {
			models = registry.DefaultModels()
		}
		if tasks == nil {
			tasks = registry.DefaultTaskTypes()
		}
		reg, err := registry.New(models, tasks)
		if err != nil {
			return nil, fmt.Errorf("invalid model table: %w", err)
		}
		c.registry = reg
	}
	if c.sender == nil {
		c.sender = transport.New(transport.Config{
			Timeout:    cfg.Timeout,
			Retry:      transport.RetryPolicy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay},
			HTTPClient: c.httpClient,
		})
	}
	if !c.lookupSet {
		c.lookup = hub.New(hub.Config{
			BaseURL:    cfg.HubURL,
			Token:      cfg.APIToken,
			HTTPClient: c.httpClient,
		})
	}
	c.resolver = NewResolver(c.registry, c.lookup, c.log)

	return c, nil
}

// Registry returns the client's model table.
func (c *Client) Registry() *registry.Registry { return c.registry }

// Resolve returns the entry a call for model would use.
func (c *Client) Resolve(ctx context.Context, model string, opts ...CallOption) registry.Entry {
	return c.resolver.Resolve(ctx, model, buildCallOptions(opts))
}

// URL returns the endpoint for an entry.
func (c *Client) URL(e registry.Entry) string { return EndpointURL(c.baseURL, e) }

// EndpointURL joins an entry URL to baseURL. Absolute entry URLs are used as
// is; an empty baseURL means DefaultBaseURL.
func EndpointURL(baseURL string, e registry.Entry) string {
	if strings.HasPrefix(e.URL, "http://") || strings.HasPrefix(e.URL, "https://") {
		return e.URL
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(e.URL, "/")
}

// Generate runs prompt against model and returns the normalized result or a
// structured *Error.
func (c *Client) Generate(ctx context.Context, prompt, model string, opts ...CallOption) (res *Result, err error) {
	ev := CallEvent{
		RequestID: uuid.NewString(),
		Model:     model,
		StartedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			e := &Error{
				Kind:    KindNormalization,
				Model:   model,
				URL:     ev.URL,
				Message: fmt.Sprintf("recovered panic: %v", r),
				stack:   string(debug.Stack()),
			}
			e.location = panicOrigin()
			err = e
		}
		var e *Error
		if errors.As(err, &e) && e.RequestID == "" {
			e.RequestID = ev.RequestID
		}
		ev.Err = err
		ev.Duration = time.Since(ev.StartedAt)
		if c.observer != nil {
			c.observer.OnCall(ctx, ev)
		}
	}()

	return c.generate(ctx, prompt, model, buildCallOptions(opts), &ev)
}

func (c *Client) generate(ctx context.Context, prompt, model string, opts CallOptions, ev *CallEvent) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, newError(&Error{Kind: KindEmptyPrompt, Model: model, Cause: ErrEmptyPrompt})
	}

	entry := c.resolver.Resolve(ctx, model, opts)
	ev.Type = entry.Type
	ev.URL = c.URL(entry)

	payload, err := BuildPayload(model, entry, prompt, opts)
	if err != nil {
		return nil, newError(&Error{Kind: KindPayload, Model: model, URL: ev.URL, Cause: err})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(&Error{Kind: KindPayload, Model: model, URL: ev.URL, Cause: err})
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Content-Type", "application/json")
	if entry.Type == registry.TypeImage {
		h.Set("Accept", "image/png")
	} else {
		h.Set("Accept", "application/json")
	}
	h.Set("X-Request-Id", ev.RequestID)
	h.Set("User-Agent", version.UserAgent())

	c.log.DebugContext(ctx, "sending inference request",
		"request_id", ev.RequestID,
		"model", model,
		"type", string(entry.Type),
		"payload", string(entry.Style()),
		"url", ev.URL)

	resp, err := c.sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    ev.URL,
		Header: h,
		Body:   body,
	})
	if err != nil {
		return nil, newError(&Error{
			Kind:   KindTransport,
			Model:  model,
			URL:    ev.URL,
			Method: http.MethodPost,
			Cause:  err,
		})
	}
	ev.Status = resp.Status
	ev.Attempts = resp.Attempts

	if !resp.Successful() {
		e := statusError(resp.Status, resp.Body)
		e.Model = model
		e.URL = firstNonEmpty(resp.URL, ev.URL)
		e.Method = firstNonEmpty(resp.Method, http.MethodPost)
		return nil, e
	}

	res, err := Normalize(resp, entry.Type)
	if err != nil {
		return nil, newError(&Error{
			Kind:   KindNormalization,
			Status: resp.Status,
			Model:  model,
			URL:    ev.URL,
			Method: http.MethodPost,
			Cause:  err,
		})
	}
	return res, nil
}

// GetResponse is Generate with every failure reported to the logger and
// collapsed to nil.
func (c *Client) GetResponse(ctx context.Context, prompt, model string, opts ...CallOption) *Result {
	res, err := c.Generate(ctx, prompt, model, opts...)
	if err != nil {
		c.report(ctx, err)
		return nil
	}
	return res
}

func (c *Client) report(ctx context.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		logger.Failure(ctx, c.log, "HuggingFace service error", err)
		return
	}

	if e.Status != 0 && e.Kind != KindNormalization {
		c.log.ErrorContext(ctx, "HuggingFace API error",
			"request_id", e.RequestID,
			"model", e.Model,
			"status_code", e.Status,
			"error_message", errorMessage([]byte(e.Body)),
			"response_body", e.Body,
			"request_url", e.URL,
			"request_method", e.Method)
	}
	logger.Failure(ctx, c.log, "HuggingFace service error", err,
		"request_id", e.RequestID,
		"kind", string(e.Kind),
		"model", e.Model)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
