package completion

import (
	"context"

	json "github.com/goccy/go-json"
)

// Message is one record of the provider-agnostic wire schema. Role is
// always present. Content is a pointer because assistant turns that only
// carry tool calls have a null content on the wire, and that null must be
// distinguishable from an empty string.
type Message struct {
	Role         string            `json:"role"`
	Content      *string           `json:"content"`
	Name         string            `json:"name,omitempty"`
	FunctionCall map[string]any    `json:"function_call,omitempty"`
	ToolCalls    []json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID   string            `json:"tool_call_id,omitempty"`

	_ struct{}
}

// ToolCall is the structured wire form of a tool call, used when the
// adapter itself emits one. Inbound tool calls stay raw (json.RawMessage)
// so passthrough never reshapes provider payloads.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`

	_ struct{}
}

// FunctionCall holds a function name and its arguments as JSON text. This
// is the one place where structured arguments are flattened to a string,
// because that is what the wire format expects.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`

	_ struct{}
}

// Usage reports token counts for one completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`

	_ struct{}
}

// Choice is one candidate completion.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`

	_ struct{}
}

// ChatCompletion is a non-streaming completion result.
type ChatCompletion struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	_ struct{}
}

// DeltaFunction carries partial function-call data within a streaming
// fragment.
type DeltaFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	_ struct{}
}

// DeltaToolCall is a partial tool call within a streaming fragment. Index
// disambiguates parallel tool calls and may be absent on continuation
// fragments. Function may be absent entirely on malformed entries.
type DeltaToolCall struct {
	Index    *int           `json:"index,omitempty"`
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Function *DeltaFunction `json:"function,omitempty"`

	_ struct{}
}

// Reasoning carries provider reasoning text attached to a fragment.
type Reasoning struct {
	Content string `json:"content,omitempty"`

	_ struct{}
}

// Delta is the partial message data of one streaming fragment. Role is
// present only on the first fragment of a turn.
type Delta struct {
	Role         string          `json:"role,omitempty"`
	Content      *string         `json:"content,omitempty"`
	FunctionCall map[string]any  `json:"function_call,omitempty"`
	ToolCalls    []DeltaToolCall `json:"tool_calls,omitempty"`
	Reasoning    *Reasoning      `json:"reasoning,omitempty"`

	_ struct{}
}

// ChunkChoice is one candidate within a streaming fragment.
type ChunkChoice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`

	_ struct{}
}

// Chunk is one incremental unit of a streaming response.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`

	_ struct{}
}

// ToolFunction describes a callable function offered to the model.
// Parameters is a JSON-schema object in dynamic form.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`

	_ struct{}
}

// Tool is the wire form of a bound tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	_ struct{}
}

// Request carries everything one completion call needs. Extra holds
// provider parameters forwarded verbatim (temperature, max_tokens, ...).
type Request struct {
	Model      string
	APIKey     string
	APIBase    string
	Messages   []Message
	Stop       []string
	Tools      []Tool
	ToolChoice any
	Extra      map[string]any

	_ struct{}
}

// Stream yields fragments of a streaming completion as they become
// available from the transport. The consumer drives iteration; stopping
// early and calling Close is the cancellation mechanism.
type Stream interface {
	Next() bool
	Current() Chunk
	Err() error
	Close() error
}

// Service is the underlying multi-provider completion capability. The
// adapter treats it as an opaque collaborator reached by endpoint
// configuration; it never implements provider protocols itself.
type Service interface {
	Complete(ctx context.Context, req Request) (*ChatCompletion, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}
