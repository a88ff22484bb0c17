package inference

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
	"github.com/jmylchreest/hfinfer/pkg/transport"
)

func okResponse(body string) *transport.Response {
	return &transport.Response{Status: 200, Body: []byte(body), Attempts: 1}
}

func TestNormalize_Text(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
		wantRaw  string
	}{
		{
			name:     "chat completion",
			body:     `{"choices":[{"message":{"content":"Hello!"}}]}`,
			wantText: "Hello!",
			wantRaw:  `{"choices":[{"message":{"content":"Hello!"}}]}`,
		},
		{
			name:     "array generated_text",
			body:     `[{"generated_text":"X"}]`,
			wantText: "X",
			wantRaw:  `[{"generated_text":"X"}]`,
		},
		{
			name:     "object generated_text",
			body:     `{"generated_text":"Y"}`,
			wantText: "Y",
			wantRaw:  `{"generated_text":"Y"}`,
		},
		{
			name:     "array answer",
			body:     `[{"answer":"42","score":0.9}]`,
			wantText: "42",
			wantRaw:  `[{"answer":"42","score":0.9}]`,
		},
		{
			name:     "array translation",
			body:     `[{"translation_text":"Bonjour"}]`,
			wantText: "Bonjour",
			wantRaw:  `[{"translation_text":"Bonjour"}]`,
		},
		{
			name:     "array summary",
			body:     `[{"summary_text":"short"}]`,
			wantText: "short",
			wantRaw:  `[{"summary_text":"short"}]`,
		},
		{
			name:     "object answer",
			body:     `{"answer":"Paris","start":0}`,
			wantText: "Paris",
			wantRaw:  `{"answer":"Paris","start":0}`,
		},
		{
			name:     "object summary",
			body:     `{"summary_text":"tl;dr"}`,
			wantText: "tl;dr",
			wantRaw:  `{"summary_text":"tl;dr"}`,
		},
		{
			name:     "generated_text wins over answer",
			body:     `[{"answer":"a","generated_text":"g"}]`,
			wantText: "g",
			wantRaw:  `[{"answer":"a","generated_text":"g"}]`,
		},
		{
			name:     "chat wins over object keys",
			body:     `{"generated_text":"g","choices":[{"message":{"content":"c"}}]}`,
			wantText: "c",
			wantRaw:  `{"generated_text":"g","choices":[{"message":{"content":"c"}}]}`,
		},
		{
			name:     "unmatched object serialized",
			body:     `{"label": "POSITIVE", "score": 0.99}`,
			wantText: `{"label":"POSITIVE","score":0.99}`,
			wantRaw:  `{"label":"POSITIVE","score":0.99}`,
		},
		{
			name:     "unmatched array serializes first element",
			body:     `[{"label":"POSITIVE"},{"label":"NEGATIVE"}]`,
			wantText: `{"label":"POSITIVE"}`,
			wantRaw:  `[{"label":"POSITIVE"},{"label":"NEGATIVE"}]`,
		},
		{
			name:     "nested array first element",
			body:     `[[{"label":"a","score":1}]]`,
			wantText: `[{"label":"a","score":1}]`,
			wantRaw:  `[[{"label":"a","score":1}]]`,
		},
		{
			name:     "null chat content falls through",
			body:     `{"choices":[{"message":{"content":null}}],"generated_text":"fallback"}`,
			wantText: "fallback",
			wantRaw:  `{"choices":[{"message":{"content":null}}],"generated_text":"fallback"}`,
		},
		{
			name:     "string scalar",
			body:     `"plain"`,
			wantText: "plain",
			wantRaw:  `"plain"`,
		},
		{
			name:     "number scalar",
			body:     `3.5`,
			wantText: "3.5",
			wantRaw:  `3.5`,
		},
		{
			name:     "invalid json",
			body:     `not json at all`,
			wantText: "not json at all",
		},
		{
			name:     "empty body",
			body:     ``,
			wantText: "",
		},
		{
			name:     "null",
			body:     `null`,
			wantText: "null",
		},
		{
			name:     "empty array",
			body:     `[]`,
			wantText: "[]",
			wantRaw:  `[]`,
		},
		{
			name:     "empty object",
			body:     `{}`,
			wantText: "{}",
			wantRaw:  `{}`,
		},
		{
			name:     "false",
			body:     `false`,
			wantText: "false",
			wantRaw:  `false`,
		},
		{
			name:     "zero",
			body:     `0`,
			wantText: "0",
			wantRaw:  `0`,
		},
		{
			name:     "empty string",
			body:     `""`,
			wantText: `""`,
			wantRaw:  `""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize(okResponse(tt.body), registry.TypeText)
			require.NoError(t, err)
			require.NotNil(t, res)

			assert.Equal(t, registry.TypeText, res.Type)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Empty(t, res.Image)
			if tt.wantRaw == "" {
				assert.Nil(t, res.Raw)
			} else {
				assert.JSONEq(t, tt.wantRaw, string(res.Raw))
			}
		})
	}
}

func TestNormalize_Image(t *testing.T) {
	res, err := Normalize(okResponse("fake-binary-image-data"), registry.TypeImage)
	require.NoError(t, err)

	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake-binary-image-data"))
	assert.Equal(t, want, res.Image)
	assert.Equal(t, registry.TypeImage, res.Type)
	assert.True(t, res.IsImage())
	assert.Empty(t, res.Text)
	assert.Nil(t, res.Raw)
}

func TestNormalize_ImageIgnoresContent(t *testing.T) {
	res, err := Normalize(okResponse(`{"error":"not an image"}`), registry.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, ImageDataURIPrefix+base64.StdEncoding.EncodeToString([]byte(`{"error":"not an image"}`)), res.Image)
}

func TestNormalize_EmptyImage(t *testing.T) {
	res, err := Normalize(okResponse(""), registry.TypeImage)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestNormalize_UnknownType(t *testing.T) {
	_, err := Normalize(okResponse(`{}`), registry.Type("audio"))
	assert.Error(t, err)
}

func TestNormalize_NilResponse(t *testing.T) {
	_, err := Normalize(nil, registry.TypeText)
	assert.Error(t, err)
}

func TestNormalize_Idempotent(t *testing.T) {
	bodies := []string{
		`{"choices":[{"message":{"content":"Hello!"}}]}`,
		`[{"generated_text":"X"}]`,
		`{"label":"x"}`,
		`garbage`,
	}
	for _, body := range bodies {
		for _, typ := range []registry.Type{registry.TypeText, registry.TypeImage} {
			resp := okResponse(body)
			first, err1 := Normalize(resp, typ)
			second, err2 := Normalize(resp, typ)
			require.NoError(t, err1)
			require.NoError(t, err2)
			assert.Equal(t, first, second, "body %q type %s", body, typ)
			assert.Equal(t, body, string(resp.Body), "body must not be modified")
		}
	}
}

func TestResult_RawValue(t *testing.T) {
	res, err := Normalize(okResponse(`[{"generated_text":"X"}]`), registry.TypeText)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"generated_text": "X"}}, res.RawValue())

	var nilResult *Result
	assert.Nil(t, nilResult.RawValue())
	assert.False(t, nilResult.IsImage())
}
