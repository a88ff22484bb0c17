package output

import (
	"bufio"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes each record as its own YAML document on Flush.
type YAMLWriter struct {
	w       *bufio.Writer
	records []Record
}

// yamlRecord carries the raw response as a node tree, which keeps numbers
// exactly as the service sent them.
type yamlRecord struct {
	Record `yaml:",inline"`
	Raw    *yaml.Node `yaml:"raw_response,omitempty"`
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers a record.
func (w *YAMLWriter) Write(rec Record) error {
	w.records = append(w.records, rec)
	return nil
}

// Flush writes the buffered records.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	for _, rec := range w.records {
		raw, err := rawNode(rec.Raw)
		if err != nil {
			return err
		}
		if err := encoder.Encode(yamlRecord{Record: rec, Raw: raw}); err != nil {
			return err
		}
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.records = w.records[:0]
	return w.w.Flush()
}

// rawNode parses JSON as YAML, which it is a subset of, and drops the flow
// styling so the tree renders in block style.
func rawNode(raw json.RawMessage) (*yaml.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	n := doc.Content[0]
	blockStyle(n)
	return n, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
