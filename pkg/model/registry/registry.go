// Package registry provides the static model configuration: the known-model
// table and the task-tag mapping used to classify models by output shape.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Type classifies a model by the shape of its response.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
)

// Valid reports whether t is one of the known model types.
func (t Type) Valid() bool {
	return t == TypeText || t == TypeImage
}

// ParseType converts a string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown model type %q (use text or image)", s)
	}
	return t, nil
}

// PayloadStyle selects how a request body is built for a model.
type PayloadStyle string

const (
	// PayloadInputs sends {"inputs": prompt} plus merged parameters.
	PayloadInputs PayloadStyle = "inputs"
	// PayloadChat sends an OpenAI-compatible chat completion body.
	PayloadChat PayloadStyle = "chat"
)

// Entry describes a known model.
type Entry struct {
	Type    Type         `json:"type" yaml:"type" validate:"required,oneof=text image"`
	URL     string       `json:"url" yaml:"url" validate:"required"`
	Payload PayloadStyle `json:"payload,omitempty" yaml:"payload,omitempty" validate:"omitempty,oneof=inputs chat"`
}

// Style returns the payload style, defaulting to PayloadInputs.
func (e Entry) Style() PayloadStyle {
	if e.Payload == "" {
		return PayloadInputs
	}
	return e.Payload
}

// NamedEntry pairs an Entry with its model identifier.
type NamedEntry struct {
	Name string `json:"name" yaml:"name"`
	Entry
}

// ErrModelNotFound is returned when a requested model is not in the registry.
var ErrModelNotFound = errors.New("model not found")

var validate = validator.New()

// Registry is an immutable lookup over known models and task tags.
// It is safe for concurrent use.
type Registry struct {
	models map[string]Entry
	tasks  map[string]Type
}

// New builds a Registry from copies of the given tables. Every entry and task
// type is validated.
func New(models map[string]Entry, tasks map[string]Type) (*Registry, error) {
	r := &Registry{
		models: make(map[string]Entry, len(models)),
		tasks:  make(map[string]Type, len(tasks)),
	}
	for name, e := range models {
		if name == "" {
			return nil, errors.New("model name cannot be empty")
		}
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		r.models[name] = e
	}
	for task, t := range tasks {
		if !t.Valid() {
			return nil, fmt.Errorf("task %s: unknown model type %q", task, t)
		}
		r.tasks[task] = t
	}
	return r, nil
}

// Default returns a Registry over DefaultModels and DefaultTaskTypes.
func Default() *Registry {
	r, err := New(DefaultModels(), DefaultTaskTypes())
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the entry for a known model.
func (r *Registry) Get(name string) (Entry, error) {
	e, ok := r.models[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return e, nil
}

// Has reports whether name is a known model.
func (r *Registry) Has(name string) bool {
	_, ok := r.models[name]
	return ok
}

// TaskType maps a remote pipeline tag to a model type.
func (r *Registry) TaskType(task string) (Type, bool) {
	t, ok := r.tasks[task]
	return t, ok
}

// Tasks returns a copy of the task-type mapping.
func (r *Registry) Tasks() map[string]Type {
	out := make(map[string]Type, len(r.tasks))
	for k, v := range r.tasks {
		out[k] = v
	}
	return out
}

// ListOption configures a List call.
type ListOption func(*listConfig)

type listConfig struct {
	typ   Type
	style PayloadStyle
}

// WithType filters models by type.
func WithType(t Type) ListOption {
	return func(c *listConfig) { c.typ = t }
}

// WithPayload filters models by payload style.
func WithPayload(p PayloadStyle) ListOption {
	return func(c *listConfig) { c.style = p }
}

// List returns known models sorted by name.
func (r *Registry) List(opts ...ListOption) []NamedEntry {
	cfg := &listConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := make([]NamedEntry, 0, len(r.models))
	for name, e := range r.models {
		if cfg.typ != "" && e.Type != cfg.typ {
			continue
		}
		if cfg.style != "" && e.Style() != cfg.style {
			continue
		}
		result = append(result, NamedEntry{Name: name, Entry: e})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
