package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Message is the tagged union over the conversation message variants.
// Implementations are value types; two messages are equal when their fields
// are equal. The unexported marker keeps the set of variants closed so a
// new wire role cannot silently fall through a type switch.
type Message interface {
	message()
}

// ToolCall is a structured request, embedded in an assistant turn, asking
// the caller to invoke a named function. Args is always a decoded structure,
// never a raw JSON string; serialization to text happens only at the wire
// boundary.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`

	_ struct{}
}

// Usage carries token accounting for one generation. TotalTokens is always
// recomputed as InputTokens+OutputTokens, regardless of what the upstream
// response claimed.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`

	_ struct{}
}

// SystemMessage sets the assistant's instructions for the conversation.
type SystemMessage struct {
	Content string         `json:"content"`
	Meta    map[string]any `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (SystemMessage) message() {}

// HumanMessage is a user turn.
type HumanMessage struct {
	Content string         `json:"content"`
	Meta    map[string]any `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (HumanMessage) message() {}

// AIMessage is an assistant turn. Content may be empty when the turn only
// carries tool calls. Meta is an opaque passthrough mapping for raw
// provider fields (function_call, raw tool_calls, reasoning_content).
type AIMessage struct {
	Content      string         `json:"content"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	Meta         map[string]any `json:"additional_kwargs,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
	ResponseMeta map[string]any `json:"response_metadata,omitempty"`

	_ struct{}
}

func (AIMessage) message() {}

// FunctionMessage is the result of a legacy function call. Name is required;
// producing a FunctionMessage without one is a caller bug.
type FunctionMessage struct {
	Content string         `json:"content"`
	Name    string         `json:"name"`
	Meta    map[string]any `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (FunctionMessage) message() {}

// ToolMessage is the result of a tool call, correlated by ToolCallID.
type ToolMessage struct {
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id"`
	Meta       map[string]any `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (ToolMessage) message() {}

// GenericMessage carries an explicit role for roles the other variants do
// not recognize.
type GenericMessage struct {
	Role    string         `json:"role"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (GenericMessage) message() {}

const (
	typeSystem   = "system"
	typeHuman    = "human"
	typeAI       = "ai"
	typeFunction = "function"
	typeTool     = "tool"
	typeGeneric  = "generic"
)

func messageType(m Message) (string, error) {
	switch m.(type) {
	case SystemMessage:
		return typeSystem, nil
	case HumanMessage:
		return typeHuman, nil
	case AIMessage:
		return typeAI, nil
	case FunctionMessage:
		return typeFunction, nil
	case ToolMessage:
		return typeTool, nil
	case GenericMessage:
		return typeGeneric, nil
	default:
		return "", fmt.Errorf("unknown message type %T", m)
	}
}

// MarshalMessage encodes a message with a "type" discriminator so the
// concrete variant survives a round trip through JSON.
func MarshalMessage(m Message) ([]byte, error) {
	mt, err := messageType(m)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", mt, err)
	}

	return sjson.SetBytes(payload, "type", mt)
}

// UnmarshalMessage decodes a message produced by MarshalMessage.
func UnmarshalMessage(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	mt := gjson.GetBytes(data, "type")
	if !mt.Exists() {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	switch mt.String() {
	case typeSystem:
		var m SystemMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeHuman:
		var m HumanMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeAI:
		var m AIMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeFunction:
		var m FunctionMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeTool:
		var m ToolMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case typeGeneric:
		var m GenericMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", mt.String())
	}
}
