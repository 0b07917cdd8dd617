package messages

import (
	"fmt"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ChunkKind classifies one streaming turn. The streaming mapper threads the
// kind of the previous fragment into the next call, so classification is
// sticky: a fragment without an explicit role inherits the kind of the turn
// it belongs to. The zero fragment of a stream starts at KindAssistant.
type ChunkKind string

const (
	KindAssistant ChunkKind = "ai"
	KindHuman     ChunkKind = "human"
	KindSystem    ChunkKind = "system"
	KindFunction  ChunkKind = "function"
	KindGeneric   ChunkKind = "generic"
)

// Chunk is the tagged union over streaming message fragments. Chunks are
// never stored in conversation history; they exist only between the stream
// transport and an Accumulator.
type Chunk interface {
	chunk()
	Kind() ChunkKind
}

// ToolCallChunk is the streaming counterpart of ToolCall. Name and Args are
// partial strings to be concatenated across fragments sharing the same
// Index. Both default to the empty string, never absent, so concatenation
// downstream is always string-safe. Index is nil on continuation fragments
// that do not repeat it.
type ToolCallChunk struct {
	Name  string `json:"name"`
	Args  string `json:"args"`
	ID    string `json:"id,omitempty"`
	Index *int   `json:"index,omitempty"`

	_ struct{}
}

// AssistantChunk is an incremental piece of an assistant turn.
type AssistantChunk struct {
	Content        string          `json:"content"`
	ToolCallChunks []ToolCallChunk `json:"tool_call_chunks,omitempty"`
	Meta           map[string]any  `json:"additional_kwargs,omitempty"`

	_ struct{}
}

func (AssistantChunk) chunk()          {}
func (AssistantChunk) Kind() ChunkKind { return KindAssistant }

// HumanChunk is an incremental piece of a user turn.
type HumanChunk struct {
	Content string `json:"content"`

	_ struct{}
}

func (HumanChunk) chunk()          {}
func (HumanChunk) Kind() ChunkKind { return KindHuman }

// SystemChunk is an incremental piece of a system turn.
type SystemChunk struct {
	Content string `json:"content"`

	_ struct{}
}

func (SystemChunk) chunk()          {}
func (SystemChunk) Kind() ChunkKind { return KindSystem }

// FunctionChunk streams a legacy function call. Content carries the partial
// arguments string.
type FunctionChunk struct {
	Content string `json:"content"`
	Name    string `json:"name"`

	_ struct{}
}

func (FunctionChunk) chunk()          {}
func (FunctionChunk) Kind() ChunkKind { return KindFunction }

// GenericChunk carries fragments for roles outside the named variants,
// including the tool role during streaming.
type GenericChunk struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	_ struct{}
}

func (GenericChunk) chunk()          {}
func (GenericChunk) Kind() ChunkKind { return KindGeneric }

// MarshalChunk encodes a chunk with a "kind" discriminator.
func MarshalChunk(c Chunk) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s chunk: %w", c.Kind(), err)
	}
	return sjson.SetBytes(payload, "kind", string(c.Kind()))
}

// UnmarshalChunk decodes a chunk produced by MarshalChunk.
func UnmarshalChunk(data []byte) (Chunk, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	kind := gjson.GetBytes(data, "kind")
	if !kind.Exists() {
		return nil, fmt.Errorf("missing required field 'kind'")
	}

	switch ChunkKind(kind.String()) {
	case KindAssistant:
		var c AssistantChunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindHuman:
		var c HumanChunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindSystem:
		var c SystemChunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindFunction:
		var c FunctionChunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case KindGeneric:
		var c GenericChunk
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown chunk kind %q", kind.String())
	}
}

// Accumulator folds the chunks of one stream into a final message. It is
// scoped to a single stream; it must not be shared across concurrent
// streams.
type Accumulator struct {
	kind      ChunkKind
	content   strings.Builder
	meta      map[string]any
	toolCalls []ToolCallChunk
	name      string
	role      string
}

// Add folds one chunk into the accumulator. Chunks must be added in arrival
// order; tool-call fragments are merged by index.
func (a *Accumulator) Add(c Chunk) {
	a.kind = c.Kind()

	switch chunk := c.(type) {
	case AssistantChunk:
		a.content.WriteString(chunk.Content)
		a.mergeMeta(chunk.Meta)
		for _, tcc := range chunk.ToolCallChunks {
			a.mergeToolCall(tcc)
		}
	case HumanChunk:
		a.content.WriteString(chunk.Content)
	case SystemChunk:
		a.content.WriteString(chunk.Content)
	case FunctionChunk:
		a.content.WriteString(chunk.Content)
		if chunk.Name != "" {
			a.name = chunk.Name
		}
	case GenericChunk:
		a.content.WriteString(chunk.Content)
		if chunk.Role != "" {
			a.role = chunk.Role
		}
	}
}

func (a *Accumulator) mergeMeta(meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	if a.meta == nil {
		a.meta = make(map[string]any, len(meta))
	}
	for k, v := range meta {
		// reasoning streams as partial text, everything else is last-write
		if prev, ok := a.meta[k].(string); ok && k == "reasoning_content" {
			if s, ok := v.(string); ok {
				a.meta[k] = prev + s
				continue
			}
		}
		a.meta[k] = v
	}
}

func (a *Accumulator) mergeToolCall(tcc ToolCallChunk) {
	if tcc.Index != nil {
		for i := range a.toolCalls {
			if a.toolCalls[i].Index != nil && *a.toolCalls[i].Index == *tcc.Index {
				a.toolCalls[i].Name += tcc.Name
				a.toolCalls[i].Args += tcc.Args
				if tcc.ID != "" {
					a.toolCalls[i].ID = tcc.ID
				}
				return
			}
		}
		a.toolCalls = append(a.toolCalls, tcc)
		return
	}

	// no index: continuation of the most recent call, or the first one
	if len(a.toolCalls) == 0 {
		a.toolCalls = append(a.toolCalls, tcc)
		return
	}
	last := &a.toolCalls[len(a.toolCalls)-1]
	last.Name += tcc.Name
	last.Args += tcc.Args
	if tcc.ID != "" {
		last.ID = tcc.ID
	}
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Message builds the final message for the accumulated stream. For
// assistant turns the concatenated tool-call argument strings are decoded
// into structured tool calls; a call whose arguments fail to decode is
// skipped with a diagnostic rather than failing the whole turn.
func (a *Accumulator) Message() Message {
	switch a.kind {
	case KindHuman:
		return HumanMessage{Content: a.content.String()}
	case KindSystem:
		return SystemMessage{Content: a.content.String()}
	case KindFunction:
		return FunctionMessage{Content: a.content.String(), Name: a.name}
	case KindGeneric:
		return GenericMessage{Role: a.role, Content: a.content.String()}
	default:
		return AIMessage{
			Content:   a.content.String(),
			ToolCalls: a.finishToolCalls(),
			Meta:      a.meta,
		}
	}
}

func (a *Accumulator) finishToolCalls() []ToolCall {
	if len(a.toolCalls) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(a.toolCalls))
	for _, tcc := range a.toolCalls {
		args := map[string]any{}
		if tcc.Args != "" {
			if err := json.Unmarshal([]byte(tcc.Args), &args); err != nil {
				slog.Debug("skipping tool call with unparsable arguments",
					"name", tcc.Name, "error", err.Error())
				continue
			}
		}
		calls = append(calls, ToolCall{
			ID:   tcc.ID,
			Name: tcc.Name,
			Args: args,
		})
	}
	if len(calls) == 0 {
		return nil
	}
	return calls
}
