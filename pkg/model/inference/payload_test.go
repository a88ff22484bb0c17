package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

const llama = "meta-llama/Meta-Llama-3-8B-Instruct"

var (
	inputsEntry = registry.Entry{Type: registry.TypeText, URL: "gpt2"}
	chatEntry   = registry.Entry{Type: registry.TypeText, URL: llama + "/v1/chat/completions", Payload: registry.PayloadChat}
)

func TestBuildPayload_Inputs(t *testing.T) {
	p, err := BuildPayload("gpt2", inputsEntry, "Hello", CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, Payload{"inputs": "Hello"}, p)
}

func TestBuildPayload_InputsMergesParameters(t *testing.T) {
	opts := buildCallOptions([]CallOption{
		WithParameter("parameters", map[string]any{"max_new_tokens": 20}),
		WithParameter("options", map[string]any{"wait_for_model": true}),
	})

	p, err := BuildPayload("gpt2", inputsEntry, "Hello", opts)
	require.NoError(t, err)
	assert.Equal(t, Payload{
		"inputs":     "Hello",
		"parameters": map[string]any{"max_new_tokens": 20},
		"options":    map[string]any{"wait_for_model": true},
	}, p)
}

func TestBuildPayload_ParametersOverrideInputs(t *testing.T) {
	opts := buildCallOptions([]CallOption{WithParameter("inputs", "replaced")})
	p, err := BuildPayload("gpt2", inputsEntry, "Hello", opts)
	require.NoError(t, err)
	assert.Equal(t, "replaced", p["inputs"])
}

func TestBuildPayload_Chat(t *testing.T) {
	p, err := BuildPayload(llama, chatEntry, "Hi there", CallOptions{})
	require.NoError(t, err)

	assert.Equal(t, llama, p["model"])
	assert.Equal(t, float64(DefaultMaxTokens), p["max_tokens"])
	assert.Equal(t, false, p["stream"])
	assert.NotContains(t, p, "inputs")

	msgs := messagesOf(t, p)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "Hi there", msgs[0]["content"])
}

func TestBuildPayload_ChatMaxTokens(t *testing.T) {
	p, err := BuildPayload(llama, chatEntry, "Hi", CallOptions{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, float64(64), p["max_tokens"])
}

func TestBuildPayload_ChatHistoryPrepended(t *testing.T) {
	opts := buildCallOptions([]CallOption{WithHistory(
		Message{Role: RoleSystem, Content: "Be brief."},
		Message{Role: RoleUser, Content: "Hello"},
		Message{Role: RoleAssistant, Content: "Hi!"},
	)})

	p, err := BuildPayload(llama, chatEntry, "How are you?", opts)
	require.NoError(t, err)

	msgs := messagesOf(t, p)
	require.Len(t, msgs, 4)
	wantRoles := []string{"system", "user", "assistant", "user"}
	wantContent := []string{"Be brief.", "Hello", "Hi!", "How are you?"}
	for i := range msgs {
		assert.Equal(t, wantRoles[i], msgs[i]["role"], "message %d", i)
		assert.Equal(t, wantContent[i], msgs[i]["content"], "message %d", i)
	}
}

func TestBuildPayload_ChatInvalidHistoryDropped(t *testing.T) {
	tests := []struct {
		name    string
		history []Message
	}{
		{name: "missing content", history: []Message{{Role: RoleUser, Content: "ok"}, {Role: RoleAssistant}}},
		{name: "missing role", history: []Message{{Content: "who am I"}}},
		{name: "unknown role", history: []Message{{Role: "tool", Content: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := buildCallOptions([]CallOption{WithHistory(tt.history...)})
			p, err := BuildPayload(llama, chatEntry, "prompt", opts)
			require.NoError(t, err)

			msgs := messagesOf(t, p)
			require.Len(t, msgs, 1)
			assert.Equal(t, "prompt", msgs[0]["content"])
		})
	}
}

func TestBuildPayload_ChatParametersMerged(t *testing.T) {
	opts := buildCallOptions([]CallOption{
		WithParameter("temperature", 0.2),
		WithParameter("stream", true),
	})
	p, err := BuildPayload(llama, chatEntry, "Hi", opts)
	require.NoError(t, err)
	assert.Equal(t, 0.2, p["temperature"])
	assert.Equal(t, true, p["stream"])
}

func TestBuildPayload_UnknownStyle(t *testing.T) {
	_, err := BuildPayload("x", registry.Entry{Type: registry.TypeText, URL: "x", Payload: "grpc"}, "Hi", CallOptions{})
	assert.Error(t, err)
}

func TestBuildPayload_DoesNotMutateOptions(t *testing.T) {
	params := map[string]any{"a": 1}
	opts := buildCallOptions([]CallOption{WithParameters(params)})
	params["b"] = 2

	_, err := BuildPayload("gpt2", inputsEntry, "Hi", opts)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, opts.Parameters)
}

func TestValidHistory(t *testing.T) {
	assert.True(t, ValidHistory(nil))
	assert.True(t, ValidHistory([]Message{{Role: RoleUser, Content: "x"}}))
	assert.False(t, ValidHistory([]Message{{Role: RoleUser}}))
}

func messagesOf(t *testing.T, p Payload) []map[string]any {
	t.Helper()
	raw, ok := p["messages"].([]any)
	require.True(t, ok, "messages should be a list, got %T", p["messages"])

	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(map[string]any)
		require.True(t, ok)
		out = append(out, msg)
	}
	return out
}
