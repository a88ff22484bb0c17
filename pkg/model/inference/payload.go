package inference

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/openai/openai-go"
	"github.com/tidwall/sjson"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

// DefaultMaxTokens is the chat completion limit when none is given.
const DefaultMaxTokens = 500

// Payload is a JSON request body.
type Payload map[string]any

var validate = validator.New()

// BuildPayload returns the request body for model using the entry's payload
// style. Parameters are merged at the top level last, so they override any
// key the style set.
func BuildPayload(model string, entry registry.Entry, prompt string, opts CallOptions) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch entry.Style() {
	case registry.PayloadInputs:
		p = Payload{"inputs": prompt}
	case registry.PayloadChat:
		p, err = chatPayload(model, prompt, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown payload style %q", entry.Payload)
	}

	for k, v := range opts.Parameters {
		p[k] = v
	}
	return p, nil
}

func chatPayload(model, prompt string, opts CallOptions) (Payload, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	history := opts.History
	if !ValidHistory(history) {
		history = nil
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}
	// Streaming is never requested.
	raw, err = sjson.SetBytes(raw, "stream", false)
	if err != nil {
		return nil, fmt.Errorf("set stream: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode chat payload: %w", err)
	}
	return p, nil
}

// ValidHistory reports whether every turn has a known role and content.
// An invalid history is dropped as a whole, not filtered.
func ValidHistory(history []Message) bool {
	for _, m := range history {
		if err := validate.Struct(m); err != nil {
			return false
		}
	}
	return true
}
