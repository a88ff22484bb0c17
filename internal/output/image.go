package output

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/hfinfer/pkg/model/inference"
)

// DecodeImage returns the bytes of a data URI produced for image models.
func DecodeImage(dataURI string) ([]byte, error) {
	if !strings.HasPrefix(dataURI, inference.ImageDataURIPrefix) {
		return nil, fmt.Errorf("not a PNG data URI")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, inference.ImageDataURIPrefix))
}

// SaveImage decodes rec.Image into path and replaces the inline data URI
// with the file name and its human-readable size.
func SaveImage(rec *Record, path string) error {
	if rec.Image == "" {
		return nil
	}
	data, err := DecodeImage(rec.Image)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create image directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	rec.Image = ""
	rec.ImageFile = path
	rec.ImageSize = humanize.Bytes(uint64(len(data)))
	return nil
}

// ImagePath returns the file for model's image. With a single model the
// given path is used verbatim; otherwise the model name is added before the
// extension.
func ImagePath(path, model string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".png"
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	slug := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(model)
	return base + "-" + slug + ext
}
