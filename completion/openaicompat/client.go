package openaicompat

import (
	"context"
	"fmt"

	"github.com/chainadapt/anyllm/completion"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"
)

var _ completion.Service = (*Client)(nil)

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	client *openai.Client
}

// New creates a Client. Request options set here apply to every call;
// per-request credentials and endpoints from completion.Request are layered
// on top per call.
func New(options ...option.RequestOption) *Client {
	return &Client{client: openai.NewClient(options...)}
}

func (c *Client) buildRequest(req completion.Request) (openai.ChatCompletionNewParams, []option.RequestOption, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, m := range req.Messages {
		om := openai.ChatCompletionMessageParam{
			Role: openai.F(openai.ChatCompletionMessageParamRole(m.Role)),
		}
		if m.Content != nil {
			om.Content = openai.F[any](*m.Content)
		}
		if m.Name != "" {
			om.Name = openai.String(m.Name)
		}
		if m.FunctionCall != nil {
			om.FunctionCall = openai.F[any](m.FunctionCall)
		}
		if len(m.ToolCalls) > 0 {
			om.ToolCalls = openai.F[any](m.ToolCalls)
		}
		if m.ToolCallID != "" {
			om.ToolCallID = openai.String(m.ToolCallID)
		}
		msgs[i] = om
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(msgs),
		Model:    openai.F(req.Model),
	}

	if len(req.Stop) > 0 {
		params.Stop = openai.F[openai.ChatCompletionNewParamsStopUnion](
			openai.ChatCompletionNewParamsStopArray(req.Stop),
		)
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tool := range req.Tools {
			def := openai.FunctionDefinitionParam{
				Name:       openai.String(tool.Function.Name),
				Parameters: openai.F(shared.FunctionParameters(tool.Function.Parameters)),
			}
			if tool.Function.Description != "" {
				def.Description = openai.String(tool.Function.Description)
			}
			tools[i] = openai.ChatCompletionToolParam{
				Type:     openai.F(openai.ChatCompletionToolTypeFunction),
				Function: openai.F(def),
			}
		}
		params.Tools = openai.F(tools)
	}

	var reqOpts []option.RequestOption
	if req.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(req.APIKey))
	}
	if req.APIBase != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(req.APIBase))
	}
	if req.ToolChoice != nil {
		reqOpts = append(reqOpts, option.WithJSONSet("tool_choice", req.ToolChoice))
	}
	for key, value := range req.Extra {
		reqOpts = append(reqOpts, option.WithJSONSet(key, value))
	}

	return params, reqOpts, nil
}

// Complete performs a single non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req completion.Request) (*completion.ChatCompletion, error) {
	params, reqOpts, err := c.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	chat, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, err
	}
	return fromOpenAI(chat), nil
}

// Stream starts a streaming chat completion and returns the fragment
// iterator.
func (c *Client) Stream(ctx context.Context, req completion.Request) (completion.Stream, error) {
	params, reqOpts, err := c.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	strm := c.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	if strm.Err() != nil {
		err := strm.Err()
		_ = strm.Close()
		return nil, err
	}
	return &chunkStream{inner: strm}, nil
}

func fromOpenAI(chat *openai.ChatCompletion) *completion.ChatCompletion {
	result := &completion.ChatCompletion{
		ID:      chat.ID,
		Model:   chat.Model,
		Choices: make([]completion.Choice, len(chat.Choices)),
	}

	for i, choice := range chat.Choices {
		msg := completion.Message{
			Role: string(choice.Message.Role),
		}

		// Assistant turns that carry only tool calls have a null content on
		// the wire; keep that distinguishable from an empty string.
		if choice.Message.Content != "" || len(choice.Message.ToolCalls) == 0 {
			content := choice.Message.Content
			msg.Content = &content
		}

		if choice.Message.FunctionCall.Name != "" || choice.Message.FunctionCall.Arguments != "" {
			msg.FunctionCall = map[string]any{
				"name":      choice.Message.FunctionCall.Name,
				"arguments": choice.Message.FunctionCall.Arguments,
			}
		}

		for _, tc := range choice.Message.ToolCalls {
			raw, err := json.Marshal(completion.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: completion.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
			if err != nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, json.RawMessage(raw))
		}

		result.Choices[i] = completion.Choice{
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		}
	}

	usage := chat.Usage
	if usage.PromptTokens != 0 || usage.CompletionTokens != 0 || usage.TotalTokens != 0 {
		result.Usage = &completion.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}

	return result
}

type chunkStream struct {
	inner interface {
		Next() bool
		Current() openai.ChatCompletionChunk
		Err() error
		Close() error
	}
	current completion.Chunk
}

func (s *chunkStream) Next() bool {
	if !s.inner.Next() {
		return false
	}
	s.current = fromOpenAIChunk(s.inner.Current())
	return true
}

func (s *chunkStream) Current() completion.Chunk { return s.current }
func (s *chunkStream) Err() error                { return s.inner.Err() }
func (s *chunkStream) Close() error              { return s.inner.Close() }

func fromOpenAIChunk(chunk openai.ChatCompletionChunk) completion.Chunk {
	result := completion.Chunk{
		ID:      chunk.ID,
		Model:   chunk.Model,
		Choices: make([]completion.ChunkChoice, len(chunk.Choices)),
	}

	for i, choice := range chunk.Choices {
		delta := completion.Delta{
			Role: string(choice.Delta.Role),
		}
		if choice.Delta.Content != "" {
			content := choice.Delta.Content
			delta.Content = &content
		}

		if choice.Delta.FunctionCall.Name != "" || choice.Delta.FunctionCall.Arguments != "" {
			delta.FunctionCall = map[string]any{
				"name":      choice.Delta.FunctionCall.Name,
				"arguments": choice.Delta.FunctionCall.Arguments,
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := int(tc.Index)
			delta.ToolCalls = append(delta.ToolCalls, completion.DeltaToolCall{
				Index: &index,
				ID:    tc.ID,
				Type:  string(tc.Type),
				Function: &completion.DeltaFunction{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		// Reasoning text is not part of the typed schema; recover it from the
		// raw delta payload when a provider sends it.
		if reasoning := gjson.Get(choice.Delta.JSON.RawJSON(), "reasoning_content"); reasoning.Exists() {
			delta.Reasoning = &completion.Reasoning{Content: reasoning.String()}
		}

		result.Choices[i] = completion.ChunkChoice{
			Delta:        delta,
			FinishReason: string(choice.FinishReason),
		}
	}

	return result
}
