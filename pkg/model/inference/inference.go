// Package inference runs prompts against Hugging Face Inference API models.
//
// A call resolves the model's response type, builds a payload suited to the
// model, posts it through a transport.Sender and normalizes the response into
// a Result: a base64 data URI for image models, or extracted text plus the
// decoded body for text models.
package inference

import (
	"encoding/json"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a prior conversation turn for chat-style models.
type Message struct {
	Role    Role   `json:"role" yaml:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" yaml:"content" validate:"required"`
}

// Result is the normalized outcome of a successful call.
type Result struct {
	Type registry.Type `json:"type" yaml:"type"`

	// Image is a data:image/png;base64 URI, set for image models.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Text is the extracted text, set for text models.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// Raw is the decoded response body for text models, or nil when the body
	// was not valid JSON.
	Raw json.RawMessage `json:"raw_response,omitempty" yaml:"-"`
}

// IsImage reports whether r carries an image.
func (r *Result) IsImage() bool { return r != nil && r.Type == registry.TypeImage }

// RawValue decodes Raw into a generic value.
func (r *Result) RawValue() any {
	if r == nil || len(r.Raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Raw, &v); err != nil {
		return nil
	}
	return v
}

// CallOptions are the per-call settings. The core never mutates them.
type CallOptions struct {
	// Type overrides resolution for models missing from the registry.
	Type registry.Type
	// Parameters are merged into the top level of the payload.
	Parameters map[string]any
	// History is prepended to chat payloads.
	History []Message
	// MaxTokens bounds chat completions. Zero means 500.
	MaxTokens int
}

// CallOption configures a single call.
type CallOption func(*CallOptions)

// WithType sets the response type for an unregistered model.
func WithType(t registry.Type) CallOption {
	return func(o *CallOptions) { o.Type = t }
}

// WithParameters merges params into the payload.
func WithParameters(params map[string]any) CallOption {
	return func(o *CallOptions) {
		if o.Parameters == nil {
			o.Parameters = make(map[string]any, len(params))
		}
		for k, v := range params {
			o.Parameters[k] = v
		}
	}
}

// WithParameter sets one payload parameter.
func WithParameter(key string, value any) CallOption {
	return WithParameters(map[string]any{key: value})
}

// WithHistory sets prior conversation turns.
func WithHistory(history ...Message) CallOption {
	return func(o *CallOptions) {
		o.History = append([]Message(nil), history...)
	}
}

// WithMaxTokens sets the chat completion token limit.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

func buildCallOptions(opts []CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
