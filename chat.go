package anyllm

import (
	"context"
	"time"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/completion/openaicompat"
	"github.com/chainadapt/anyllm/messages"
	"github.com/chainadapt/anyllm/tool"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// LLMType is the type tag the orchestration framework uses to identify this
// adapter.
const LLMType = "anyllm-chat"

// TokenCallback observes streamed content tokens. It is invoked for each
// fragment carrying non-empty content, before the next fragment is
// requested from the transport.
type TokenCallback func(token string, chunk messages.Chunk)

// ChatModel exposes the completion capability through the chat-model
// contract: blocking generate, channel-based streaming, tool binding, and
// parameter introspection. A ChatModel is immutable after construction;
// BindTools returns a derived copy.
type ChatModel struct {
	model      string
	apiKey     string
	apiBase    string
	defaults   map[string]any
	streaming  bool
	svc        completion.Service
	tools      []tool.Definition
	toolChoice any
	onToken    TokenCallback
}

// New builds a chat model for the named model. Without WithService the
// model talks to an OpenAI-compatible endpoint (api_base or the default).
func New(model string, options ...Option) (*ChatModel, error) {
	m := &ChatModel{model: model}
	if err := opts.Apply(m, options); err != nil {
		return nil, err
	}
	if m.svc == nil {
		m.svc = openaicompat.ForEndpoint(m.apiBase)
	}
	return m, nil
}

// Type returns the adapter's type tag.
func (m *ChatModel) Type() string {
	return LLMType
}

// IdentifyingParams reports the parameters that identify this model
// configuration.
func (m *ChatModel) IdentifyingParams() map[string]any {
	params := make(map[string]any, len(m.defaults)+1)
	params["model"] = m.model
	for k, v := range m.defaults {
		params[k] = v
	}
	return params
}

// BindTools returns a derived model with the given tools bound. The
// returned model is independently callable; the receiver is unchanged.
func (m *ChatModel) BindTools(toolChoice any, defs ...tool.Definition) *ChatModel {
	derived := *m
	derived.tools = append([]tool.Definition(nil), defs...)
	derived.toolChoice = toolChoice
	return &derived
}

// Invoke performs a blocking completion call. When the model was built with
// WithStreaming(true) the call streams under the hood and folds the
// fragments into the final result.
func (m *ChatModel) Invoke(ctx context.Context, msgs []messages.Message, options ...CallOption) (*ChatResult, error) {
	if m.streaming {
		events, err := m.Stream(ctx, msgs, options...)
		if err != nil {
			return nil, err
		}
		return GenerateFromStream(events)
	}

	req, err := m.request(msgs, options)
	if err != nil {
		return nil, err
	}

	resp, err := m.svc.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	generations, err := fromCompletion(resp, m.model)
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Generations: generations,
		Usage:       resp.Usage,
		Model:       m.model,
	}, nil
}

// Stream performs a streaming completion call. Fragments are mapped and
// emitted one at a time as they arrive from the transport; nothing is
// buffered or reordered. The channel closes when the stream ends, after a
// final ResponseEvent carrying the folded result (or an ErrorEvent).
// Cancel by cancelling the context.
func (m *ChatModel) Stream(ctx context.Context, msgs []messages.Message, options ...CallOption) (<-chan StreamEvent, error) {
	req, err := m.request(msgs, options)
	if err != nil {
		return nil, err
	}

	strm, err := m.svc.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	if strm == nil {
		return nil, &UnexpectedResponseTypeError{Expected: "stream", Got: strm}
	}

	events := make(chan StreamEvent, 10)
	go m.pump(ctx, uuid.New(), strm, events)
	return events, nil
}

func (m *ChatModel) pump(ctx context.Context, runID uuid.UUID, strm completion.Stream, events chan<- StreamEvent) {
	defer close(events)
	defer strm.Close() //nolint:errcheck

	var notFirst bool
	var acc messages.Accumulator
	var finishReason string
	kind := messages.KindAssistant

	for strm.Next() {
		if err := ctx.Err(); err != nil {
			events <- ErrorEvent{RunID: runID, Err: err, Timestamp: strfmt.DateTime(time.Now())}
			return
		}

		chunk := strm.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		if !notFirst {
			notFirst = true
			events <- Delim{RunID: runID, Delim: "start"}
		}

		for i := range chunk.Choices {
			choice := chunk.Choices[i]

			var mc messages.Chunk
			mc, kind = ConvertDelta(&choice.Delta, kind)
			acc.Add(mc)
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}

			if m.onToken != nil {
				if content := chunkContent(mc); content != "" {
					m.onToken(content, mc)
				}
			}

			events <- ChunkEvent{RunID: runID, Chunk: mc, Timestamp: strfmt.DateTime(time.Now())}
		}
	}

	if err := strm.Err(); err != nil {
		events <- ErrorEvent{RunID: runID, Err: err, Timestamp: strfmt.DateTime(time.Now())}
		return
	}

	if notFirst && ctx.Err() == nil {
		events <- Delim{RunID: runID, Delim: "end"}
		events <- ResponseEvent{
			RunID: runID,
			Result: ChatResult{
				Generations: []Generation{{Message: acc.Message(), FinishReason: finishReason}},
				Model:       m.model,
			},
			Timestamp: strfmt.DateTime(time.Now()),
		}
	}
}

// GenerateFromStream drains a streaming event channel and returns the
// folded final result.
func GenerateFromStream(events <-chan StreamEvent) (*ChatResult, error) {
	var result *ChatResult
	for event := range events {
		switch e := event.(type) {
		case ErrorEvent:
			return nil, e.Err
		case ResponseEvent:
			res := e.Result
			result = &res
		}
	}
	if result == nil {
		return nil, &UnexpectedResponseTypeError{Expected: "stream response", Got: nil}
	}
	return result, nil
}

func chunkContent(c messages.Chunk) string {
	switch chunk := c.(type) {
	case messages.AssistantChunk:
		return chunk.Content
	case messages.HumanChunk:
		return chunk.Content
	case messages.SystemChunk:
		return chunk.Content
	case messages.FunctionChunk:
		return chunk.Content
	case messages.GenericChunk:
		return chunk.Content
	default:
		return ""
	}
}

func (m *ChatModel) request(msgs []messages.Message, options []CallOption) (completion.Request, error) {
	var call CallParams
	if err := opts.Apply(&call, options); err != nil {
		return completion.Request{}, err
	}

	wired := make([]completion.Message, len(msgs))
	for i, msg := range msgs {
		w, err := ToWire(msg)
		if err != nil {
			return completion.Request{}, err
		}
		wired[i] = w
	}

	return m.buildRequest(wired, call)
}

// buildRequest assembles the completion request from the model defaults and
// the per-call parameters. It fails before any external call when `stop` is
// supplied both ways.
func (m *ChatModel) buildRequest(wired []completion.Message, call CallParams) (completion.Request, error) {
	extra := make(map[string]any, len(m.defaults)+len(call.params))
	for k, v := range m.defaults {
		extra[k] = v
	}

	if len(call.stop) > 0 {
		if _, ok := extra["stop"]; ok {
			return completion.Request{}, &AmbiguousParameterError{Name: "stop"}
		}
	}
	for k, v := range call.params {
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}

	req := completion.Request{
		Model:    m.model,
		APIKey:   m.apiKey,
		APIBase:  m.apiBase,
		Messages: wired,
		Stop:     call.stop,
		Extra:    extra,
	}

	// tool_choice only means something when tools ride along with it
	if len(m.tools) > 0 {
		tools := make([]completion.Tool, len(m.tools))
		for i, td := range m.tools {
			ct, err := td.ToCompletionTool()
			if err != nil {
				return completion.Request{}, err
			}
			tools[i] = ct
		}
		req.Tools = tools

		choice := m.toolChoice
		if call.toolChoice != nil {
			choice = call.toolChoice
		}
		if choice != nil {
			req.ToolChoice = translateToolChoice(choice)
		}
	}

	return req, nil
}

// translateToolChoice maps the framework's tool_choice values onto the wire
// vocabulary: true and "any" become "required", false becomes "none",
// anything else passes through unchanged.
func translateToolChoice(v any) any {
	switch choice := v.(type) {
	case bool:
		if choice {
			return "required"
		}
		return "none"
	case string:
		if choice == "any" {
			return "required"
		}
		return choice
	default:
		return v
	}
}
