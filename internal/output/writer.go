// Package output renders inference results for the CLI.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/hfinfer/pkg/model/inference"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the supported formats.
func Formats() []Format { return []Format{FormatJSON, FormatJSONL, FormatYAML} }

// Record is one model's outcome.
type Record struct {
	Model     string `json:"model" yaml:"model"`
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`

	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// Raw is the response body as returned. YAMLWriter renders it as a tree.
	Raw json.RawMessage `json:"raw_response,omitempty" yaml:"-"`

	Image     string `json:"image,omitempty" yaml:"image,omitempty"`
	ImageFile string `json:"image_file,omitempty" yaml:"image_file,omitempty"`
	ImageSize string `json:"image_size,omitempty" yaml:"image_size,omitempty"`

	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// OK reports whether the record carries a result.
func (r Record) OK() bool { return r.Error == "" }

// NewRecord builds a Record from a call outcome.
func NewRecord(model string, res *inference.Result, err error, took time.Duration) Record {
	rec := Record{Model: model}
	if took > 0 {
		rec.Duration = took.Round(time.Millisecond).String()
	}

	var ie *inference.Error
	if errors.As(err, &ie) {
		rec.RequestID = ie.RequestID
	}
	if err != nil {
		rec.Error = err.Error()
		rec.ErrorKind = string(inference.KindOf(err))
		return rec
	}
	if res == nil {
		rec.Error = "no result"
		return rec
	}

	rec.Type = string(res.Type)
	rec.Text = res.Text
	rec.Image = res.Image
	rec.Raw = res.Raw
	return rec
}

// Writer serializes records.
type Writer interface {
	// Write outputs a single record.
	Write(rec Record) error

	// Flush ensures all data is written.
	Flush() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
