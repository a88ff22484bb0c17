package inference

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
	"github.com/jmylchreest/hfinfer/pkg/transport"
)

// ImageDataURIPrefix precedes the base64 image body.
const ImageDataURIPrefix = "data:image/png;base64,"

// textKeys are the single-field response shapes, in precedence order.
var textKeys = []string{"generated_text", "answer", "translation_text", "summary_text"}

// ErrEmptyImage is returned when an image model responds with no body.
var ErrEmptyImage = errors.New("empty image response")

// Normalize converts a successful response into a Result for type t. It has
// no side effects, so normalizing the same input twice gives equal results.
func Normalize(resp *transport.Response, t registry.Type) (*Result, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	switch t {
	case registry.TypeImage:
		return normalizeImage(resp.Body)
	case registry.TypeText:
		return normalizeText(resp.Body), nil
	default:
		return nil, fmt.Errorf("unknown model type %q", t)
	}
}

func normalizeImage(body []byte) (*Result, error) {
	if len(body) == 0 {
		return nil, ErrEmptyImage
	}
	return &Result{
		Type:  registry.TypeImage,
		Image: ImageDataURIPrefix + base64.StdEncoding.EncodeToString(body),
	}, nil
}

func normalizeText(body []byte) *Result {
	if !gjson.ValidBytes(body) {
		return &Result{Type: registry.TypeText, Text: string(body)}
	}

	data := gjson.ParseBytes(body)
	raw := compact(body)
	if falsy(data) {
		if data.Type == gjson.Null {
			raw = nil
		}
		return &Result{Type: registry.TypeText, Text: string(body), Raw: raw}
	}

	return &Result{Type: registry.TypeText, Text: extractText(data, raw), Raw: raw}
}

// extractText picks the human-readable text out of a decoded body.
func extractText(data gjson.Result, raw []byte) string {
	if s := nonEmpty(data.Get("choices.0.message.content")); s != "" {
		return s
	}

	switch {
	case data.IsArray():
		first := data.Get("0")
		for _, k := range textKeys {
			if s := nonEmpty(first.Get(k)); s != "" {
				return s
			}
		}
		return string(compact([]byte(first.Raw)))
	case data.IsObject():
		for _, k := range textKeys {
			if s := nonEmpty(data.Get(k)); s != "" {
				return s
			}
		}
		return string(raw)
	case data.Type == gjson.String:
		return data.String()
	default:
		return string(raw)
	}
}

func nonEmpty(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.String()
}

// falsy reports whether a decoded body carries nothing: null, false, zero,
// an empty string, or an empty array or object.
func falsy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return r.Num == 0
	case gjson.String:
		return r.Str == ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) == 0
		}
		return len(r.Map()) == 0
	}
	return false
}

func compact(b []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return json.RawMessage(bytes.TrimSpace(b))
	}
	return json.RawMessage(buf.Bytes())
}
