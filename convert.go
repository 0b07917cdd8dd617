package anyllm

import (
	"fmt"
	"log/slog"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/messages"
	"github.com/chainadapt/anyllm/pkg/slogx"
	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ToWire converts one typed conversation message into its wire record.
// Conversation order is load-bearing; callers apply this per message and
// never reorder or deduplicate the results.
func ToWire(m messages.Message) (completion.Message, error) {
	var wire completion.Message
	var meta map[string]any

	switch msg := m.(type) {
	case messages.GenericMessage:
		wire = completion.Message{Role: msg.Role, Content: swag.String(msg.Content)}
		meta = msg.Meta
	case messages.HumanMessage:
		wire = completion.Message{Role: "user", Content: swag.String(msg.Content)}
		meta = msg.Meta
	case messages.AIMessage:
		wire = completion.Message{Role: "assistant", Content: swag.String(msg.Content)}
		meta = msg.Meta
		if fc, ok := msg.Meta["function_call"].(map[string]any); ok {
			wire.FunctionCall = fc
		}
		if len(msg.ToolCalls) > 0 {
			raw, err := encodeToolCalls(msg.ToolCalls)
			if err != nil {
				return completion.Message{}, err
			}
			wire.ToolCalls = raw
		} else if passthrough, ok := msg.Meta["tool_calls"]; ok {
			wire.ToolCalls = rawToolCalls(passthrough)
		}
	case messages.SystemMessage:
		wire = completion.Message{Role: "system", Content: swag.String(msg.Content)}
		meta = msg.Meta
	case messages.FunctionMessage:
		wire = completion.Message{Role: "function", Content: swag.String(msg.Content), Name: msg.Name}
		meta = msg.Meta
	case messages.ToolMessage:
		wire = completion.Message{Role: "tool", Content: swag.String(msg.Content), ToolCallID: msg.ToolCallID}
		meta = msg.Meta
	default:
		return completion.Message{}, &UnsupportedMessageTypeError{Message: m}
	}

	// a name in the passthrough metadata wins over variant-specific names
	if name, ok := meta["name"].(string); ok {
		wire.Name = name
	}

	return wire, nil
}

// encodeToolCalls flattens structured tool calls into the wire form. This is
// the one boundary where decoded argument structures become JSON text.
func encodeToolCalls(calls []messages.ToolCall) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, len(calls))
	for i, tc := range calls {
		args, err := json.Marshal(tc.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arguments for tool call %s: %w", tc.Name, err)
		}

		entry, err := json.Marshal(completion.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: completion.FunctionCall{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool call %s: %w", tc.Name, err)
		}
		raw[i] = entry
	}
	return raw, nil
}

// rawToolCalls forwards passthrough tool calls without reshaping them.
func rawToolCalls(v any) []json.RawMessage {
	switch calls := v.(type) {
	case []json.RawMessage:
		return calls
	default:
		b, err := json.Marshal(v)
		if err != nil {
			slog.Debug("dropping unencodable passthrough tool_calls", slogx.Error(err))
			return nil
		}
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			slog.Debug("dropping non-list passthrough tool_calls", slogx.Error(err))
			return nil
		}
		return raw
	}
}

// FromWire converts one wire record into a typed conversation message,
// using the reverse of the ToWire role mapping. Unrecognized roles become
// GenericMessage; a missing role becomes GenericMessage with role "unknown".
func FromWire(m completion.Message) messages.Message {
	content := swag.StringValue(m.Content)

	switch m.Role {
	case "user":
		return messages.HumanMessage{Content: content}
	case "assistant":
		meta := map[string]any{}
		if len(m.FunctionCall) > 0 {
			meta["function_call"] = m.FunctionCall
		}

		var toolCalls []messages.ToolCall
		if len(m.ToolCalls) > 0 {
			meta["tool_calls"] = m.ToolCalls
			for _, raw := range m.ToolCalls {
				tc, err := parseToolCall(raw)
				if err != nil {
					slog.Debug("skipping malformed tool call", slogx.Error(err))
					continue
				}
				toolCalls = append(toolCalls, tc)
			}
		}

		if len(meta) == 0 {
			meta = nil
		}
		return messages.AIMessage{Content: content, ToolCalls: toolCalls, Meta: meta}
	case "system":
		return messages.SystemMessage{Content: content}
	case "function":
		return messages.FunctionMessage{Content: content, Name: m.Name}
	case "tool":
		return messages.ToolMessage{Content: content, ToolCallID: m.ToolCallID}
	case "":
		return messages.GenericMessage{Role: "unknown", Content: content}
	default:
		return messages.GenericMessage{Role: m.Role, Content: content}
	}
}

// parseToolCall decodes one raw wire tool call into its structured form.
// Arguments must be a JSON text string holding a decodable object.
func parseToolCall(raw json.RawMessage) (messages.ToolCall, error) {
	res := gjson.ParseBytes(raw)

	name := res.Get("function.name")
	if !name.Exists() {
		return messages.ToolCall{}, fmt.Errorf("tool call has no function name: %s", raw)
	}

	argsText := res.Get("function.arguments")
	if !argsText.Exists() {
		return messages.ToolCall{}, fmt.Errorf("tool call has no arguments: %s", raw)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(argsText.String()), &args); err != nil {
		return messages.ToolCall{}, fmt.Errorf("tool call arguments are not valid json: %w", err)
	}

	return messages.ToolCall{
		ID:   res.Get("id").String(),
		Name: name.String(),
		Args: args,
	}, nil
}

// fromCompletion maps a non-streaming completion result onto generations.
// Usage counters attach only to assistant outputs, with the total recomputed
// rather than trusted from upstream.
func fromCompletion(resp *completion.ChatCompletion, model string) ([]Generation, error) {
	if resp == nil {
		return nil, &UnexpectedResponseTypeError{Expected: "chat completion", Got: resp}
	}

	generations := make([]Generation, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		msg := FromWire(choice.Message)
		if ai, ok := msg.(messages.AIMessage); ok && resp.Usage != nil {
			ai.ResponseMeta = map[string]any{"model_name": model}
			ai.Usage = &messages.Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
			}
			msg = ai
		}

		generations = append(generations, Generation{
			Message:      msg,
			FinishReason: choice.FinishReason,
		})
	}

	return generations, nil
}
