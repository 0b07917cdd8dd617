package anyllm

import (
	"log/slog"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/messages"
)

// deltaView is the narrow accessor over a streaming fragment. Fragments
// arrive either as typed deltas or as decoded JSON maps; the two adapters
// below hide that so the mapping logic never branches on shape again.
type deltaView interface {
	field(name string) (any, bool)
}

type mapView map[string]any

func (v mapView) field(name string) (any, bool) {
	val, ok := v[name]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

type objView struct {
	d *completion.Delta
}

func (v objView) field(name string) (any, bool) {
	switch name {
	case "role":
		if v.d.Role == "" {
			return nil, false
		}
		return v.d.Role, true
	case "content":
		if v.d.Content == nil {
			return nil, false
		}
		return *v.d.Content, true
	case "function_call":
		if len(v.d.FunctionCall) == 0 {
			return nil, false
		}
		return v.d.FunctionCall, true
	case "tool_calls":
		if len(v.d.ToolCalls) == 0 {
			return nil, false
		}
		return v.d.ToolCalls, true
	case "reasoning":
		if v.d.Reasoning == nil {
			return nil, false
		}
		return v.d.Reasoning, true
	default:
		return nil, false
	}
}

func newDeltaView(delta any) (deltaView, bool) {
	switch d := delta.(type) {
	case map[string]any:
		return mapView(d), true
	case *completion.Delta:
		if d == nil {
			return nil, false
		}
		return objView{d: d}, true
	case completion.Delta:
		return objView{d: &d}, true
	default:
		return nil, false
	}
}

func stringField(view deltaView, name string) string {
	v, ok := view.field(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ConvertDelta maps one streaming fragment onto a typed chunk and returns
// the classification to carry into the next fragment. An explicit role on
// the fragment overrides; otherwise the carried-in kind decides, so a turn
// keeps its variant across fragments that omit the role. The classifier is
// caller-threaded state scoped to one stream; nothing here is shared across
// concurrent streams.
func ConvertDelta(delta any, kind messages.ChunkKind) (messages.Chunk, messages.ChunkKind) {
	view, ok := newDeltaView(delta)
	if !ok {
		slog.Debug("unrecognized delta shape", "delta", delta)
		return contentChunk(kind, "", ""), kind
	}

	role := stringField(view, "role")
	content := stringField(view, "content")

	meta := map[string]any{}
	if fc, ok := view.field("function_call"); ok {
		if fcm, ok := fc.(map[string]any); ok {
			meta["function_call"] = fcm
		}
	}
	if rc := reasoningContent(view); rc != "" {
		meta["reasoning_content"] = rc
	}

	var tcChunks []messages.ToolCallChunk
	if raw, ok := view.field("tool_calls"); ok {
		meta["tool_calls"] = raw
		tcChunks = toolCallChunks(raw)
	}
	if len(meta) == 0 {
		meta = nil
	}

	switch role {
	case "user":
		return messages.HumanChunk{Content: content}, messages.KindHuman
	case "assistant":
		return assistantChunk(content, tcChunks, meta)
	case "system":
		return messages.SystemChunk{Content: content}, messages.KindSystem
	case "":
		// no role on the fragment: classification is sticky
		switch kind {
		case messages.KindHuman:
			return messages.HumanChunk{Content: content}, messages.KindHuman
		case messages.KindSystem:
			return messages.SystemChunk{Content: content}, messages.KindSystem
		case messages.KindFunction:
			if fc, ok := meta["function_call"].(map[string]any); ok {
				name, _ := fc["name"].(string)
				args, _ := fc["arguments"].(string)
				return messages.FunctionChunk{Content: args, Name: name}, messages.KindFunction
			}
			return contentChunk(kind, content, role), kind
		case messages.KindGeneric:
			return messages.GenericChunk{Role: role, Content: content}, messages.KindGeneric
		default:
			return assistantChunk(content, tcChunks, meta)
		}
	default:
		// tool and any other unrecognized role stream as generic chunks
		return messages.GenericChunk{Role: role, Content: content}, messages.KindGeneric
	}
}

func assistantChunk(content string, tcChunks []messages.ToolCallChunk, meta map[string]any) (messages.Chunk, messages.ChunkKind) {
	return messages.AssistantChunk{
		Content:        content,
		ToolCallChunks: tcChunks,
		Meta:           meta,
	}, messages.KindAssistant
}

func contentChunk(kind messages.ChunkKind, content, role string) messages.Chunk {
	switch kind {
	case messages.KindHuman:
		return messages.HumanChunk{Content: content}
	case messages.KindSystem:
		return messages.SystemChunk{Content: content}
	case messages.KindFunction:
		return messages.FunctionChunk{Content: content}
	case messages.KindGeneric:
		return messages.GenericChunk{Role: role, Content: content}
	default:
		return messages.AssistantChunk{Content: content}
	}
}

// reasoningContent extracts reasoning text from either fragment shape.
func reasoningContent(view deltaView) string {
	v, ok := view.field("reasoning")
	if !ok {
		return ""
	}

	switch r := v.(type) {
	case *completion.Reasoning:
		return r.Content
	case completion.Reasoning:
		return r.Content
	case map[string]any:
		s, _ := r["content"].(string)
		return s
	default:
		return ""
	}
}

// toolCallChunks builds fragments from the raw tool-call entries of one
// delta. Name and Args always default to the empty string so concatenation
// across fragments stays string-safe. A malformed entry is skipped; its
// siblings in the same fragment are still converted.
func toolCallChunks(raw any) []messages.ToolCallChunk {
	var chunks []messages.ToolCallChunk

	switch calls := raw.(type) {
	case []completion.DeltaToolCall:
		for _, tc := range calls {
			if tc.Function == nil {
				slog.Debug("skipping malformed tool call chunk", "reason", "missing function", "id", tc.ID)
				continue
			}
			chunks = append(chunks, messages.ToolCallChunk{
				Name:  tc.Function.Name,
				Args:  tc.Function.Arguments,
				ID:    tc.ID,
				Index: tc.Index,
			})
		}
	case []any:
		for _, entry := range calls {
			m, ok := entry.(map[string]any)
			if !ok {
				slog.Debug("skipping malformed tool call chunk", "reason", "entry is not an object")
				continue
			}
			fn, ok := m["function"].(map[string]any)
			if !ok {
				slog.Debug("skipping malformed tool call chunk", "reason", "missing function")
				continue
			}

			name, _ := fn["name"].(string)
			args, _ := fn["arguments"].(string)
			id, _ := m["id"].(string)

			var index *int
			switch n := m["index"].(type) {
			case float64:
				i := int(n)
				index = &i
			case int:
				i := n
				index = &i
			}

			chunks = append(chunks, messages.ToolCallChunk{
				Name:  name,
				Args:  args,
				ID:    id,
				Index: index,
			})
		}
	default:
		slog.Debug("skipping tool calls of unrecognized shape", "tool_calls", raw)
	}

	return chunks
}
