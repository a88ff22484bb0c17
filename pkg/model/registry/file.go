package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var fileSchemaSource string

var fileSchema = jsonschema.MustCompileString("models.schema.json", fileSchemaSource)

// File is the on-disk form of a model table.
//
//	models:
//	  stabilityai/stable-diffusion-xl-base-1.0:
//	    type: image
//	    url: stabilityai/stable-diffusion-xl-base-1.0
//	task_types:
//	  text-to-audio: text
type File struct {
	Models    map[string]Entry `json:"models" yaml:"models"`
	TaskTypes map[string]Type  `json:"task_types,omitempty" yaml:"task_types,omitempty"`
	// Replace discards the built-in tables instead of extending them.
	Replace bool `json:"replace,omitempty" yaml:"replace,omitempty"`
}

// FromFile loads a model table from a JSON or YAML file.
func FromFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported models file format: %s", ext)
	}
}

// ParseJSON parses and validates a JSON model table.
func ParseJSON(data []byte) (*File, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse models JSON: %w", err)
	}
	if err := fileSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid models file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse models JSON: %w", err)
	}
	return &f, nil
}

// ParseYAML parses and validates a YAML model table. The document is
// re-encoded as JSON so both formats go through the same schema.
func ParseYAML(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse models YAML: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert models YAML: %w", err)
	}
	return ParseJSON(asJSON)
}

// Registry builds a Registry from the file. Unless Replace is set, the file
// extends the default tables and its entries win on conflict.
func (f *File) Registry() (*Registry, error) {
	models := map[string]Entry{}
	tasks := map[string]Type{}
	if !f.Replace {
		models = DefaultModels()
		tasks = DefaultTaskTypes()
	}
	for name, e := range f.Models {
		models[name] = e
	}
	for task, t := range f.TaskTypes {
		tasks[task] = t
	}
	return New(models, tasks)
}
