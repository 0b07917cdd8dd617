package anyllm

import (
	"context"
	"errors"
	"testing"

	"github.com/chainadapt/anyllm/completion"
	"github.com/chainadapt/anyllm/messages"
	"github.com/chainadapt/anyllm/tool"
	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	completeResp *completion.ChatCompletion
	completeErr  error
	streamChunks []completion.Chunk
	streamErr    error

	lastRequest *completion.Request
	calls       int
}

func (f *fakeService) Complete(_ context.Context, req completion.Request) (*completion.ChatCompletion, error) {
	f.calls++
	f.lastRequest = &req
	return f.completeResp, f.completeErr
}

func (f *fakeService) Stream(_ context.Context, req completion.Request) (completion.Stream, error) {
	f.calls++
	f.lastRequest = &req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{chunks: f.streamChunks}, nil
}

type fakeStream struct {
	chunks []completion.Chunk
	pos    int
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() completion.Chunk { return s.chunks[s.pos-1] }
func (s *fakeStream) Err() error                { return s.err }
func (s *fakeStream) Close() error              { s.closed = true; return nil }

func weatherTool() tool.Definition {
	return tool.Must(func(location string) string { return "" },
		tool.Name("get_weather"),
		tool.Description("Get the current weather"),
		tool.Parameters("location"),
	)
}

func TestChatModel_Type(t *testing.T) {
	m, err := New("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "anyllm-chat", m.Type())
}

func TestChatModel_IdentifyingParams(t *testing.T) {
	m, err := New("gpt-4o-mini",
		WithModelParam("temperature", 0.2),
		WithModelParam("max_tokens", 100),
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"model":       "gpt-4o-mini",
		"temperature": 0.2,
		"max_tokens":  100,
	}, m.IdentifyingParams())
}

func TestChatModel_Invoke(t *testing.T) {
	svc := &fakeService{
		completeResp: &completion.ChatCompletion{
			Model: "gpt-4o-mini",
			Choices: []completion.Choice{
				{
					Message:      completion.Message{Role: "assistant", Content: swag.String("Hello there")},
					FinishReason: "stop",
				},
			},
			Usage: &completion.Usage{PromptTokens: 5, CompletionTokens: 10, TotalTokens: 15},
		},
	}

	m, err := New("gpt-4o-mini", WithService(svc), WithAPIKey("sk-test"))
	require.NoError(t, err)

	result, err := m.Invoke(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "Hi"},
	})
	require.NoError(t, err)
	require.Len(t, result.Generations, 1)
	assert.Equal(t, "gpt-4o-mini", result.Model)
	assert.Equal(t, "stop", result.Generations[0].FinishReason)

	ai, ok := result.Generations[0].Message.(messages.AIMessage)
	require.True(t, ok)
	assert.Equal(t, "Hello there", ai.Content)

	require.NotNil(t, svc.lastRequest)
	assert.Equal(t, "sk-test", svc.lastRequest.APIKey)
	require.Len(t, svc.lastRequest.Messages, 1)
	assert.Equal(t, "user", svc.lastRequest.Messages[0].Role)
}

func TestChatModel_Invoke_StopConflict(t *testing.T) {
	svc := &fakeService{}
	m, err := New("gpt-4o-mini",
		WithService(svc),
		WithModelParam("stop", []string{"###"}),
	)
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(),
		[]messages.Message{messages.HumanMessage{Content: "Hi"}},
		WithStop([]string{"END"}),
	)
	require.Error(t, err)

	var ambiguous *AmbiguousParameterError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "stop", ambiguous.Name)
	assert.Contains(t, err.Error(), "`stop` found in both")

	// the conflict is detected before anything goes out
	assert.Zero(t, svc.calls)
}

func TestChatModel_Invoke_DefaultsAndCallParams(t *testing.T) {
	svc := &fakeService{
		completeResp: &completion.ChatCompletion{
			Choices: []completion.Choice{
				{Message: completion.Message{Role: "assistant", Content: swag.String("ok")}},
			},
		},
	}
	m, err := New("gpt-4o-mini",
		WithService(svc),
		WithModelParam("temperature", 0.2),
	)
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(),
		[]messages.Message{messages.HumanMessage{Content: "Hi"}},
		WithStop([]string{"###"}),
		WithParam("max_tokens", 50),
	)
	require.NoError(t, err)

	req := svc.lastRequest
	require.NotNil(t, req)
	assert.Equal(t, []string{"###"}, req.Stop)
	assert.Equal(t, 0.2, req.Extra["temperature"])
	assert.Equal(t, 50, req.Extra["max_tokens"])
}

func TestTranslateToolChoice(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "true means required", input: true, want: "required"},
		{name: "false means none", input: false, want: "none"},
		{name: "any means required", input: "any", want: "required"},
		{name: "auto passes through", input: "auto", want: "auto"},
		{name: "none passes through", input: "none", want: "none"},
		{
			name:  "structured choice passes through",
			input: map[string]any{"type": "function", "function": map[string]any{"name": "f"}},
			want:  map[string]any{"type": "function", "function": map[string]any{"name": "f"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateToolChoice(tt.input))
		})
	}
}

func TestChatModel_BindTools(t *testing.T) {
	svc := &fakeService{
		completeResp: &completion.ChatCompletion{
			Choices: []completion.Choice{
				{Message: completion.Message{Role: "assistant", Content: swag.String("ok")}},
			},
		},
	}
	base, err := New("gpt-4o-mini", WithService(svc))
	require.NoError(t, err)

	bound := base.BindTools("any", weatherTool())
	require.NotSame(t, base, bound)

	_, err = bound.Invoke(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "weather?"},
	})
	require.NoError(t, err)

	req := svc.lastRequest
	require.NotNil(t, req)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "function", req.Tools[0].Type)
	assert.Equal(t, "get_weather", req.Tools[0].Function.Name)
	assert.Equal(t, "required", req.ToolChoice)

	// the base model is untouched
	_, err = base.Invoke(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "weather?"},
	})
	require.NoError(t, err)
	assert.Empty(t, svc.lastRequest.Tools)
	assert.Nil(t, svc.lastRequest.ToolChoice)
}

func TestChatModel_ToolChoiceWithoutTools(t *testing.T) {
	svc := &fakeService{
		completeResp: &completion.ChatCompletion{
			Choices: []completion.Choice{
				{Message: completion.Message{Role: "assistant", Content: swag.String("ok")}},
			},
		},
	}
	m, err := New("gpt-4o-mini", WithService(svc))
	require.NoError(t, err)

	_, err = m.Invoke(context.Background(),
		[]messages.Message{messages.HumanMessage{Content: "Hi"}},
		WithToolChoice("required"),
	)
	require.NoError(t, err)

	// tool_choice is dropped when no tools ride along
	assert.Nil(t, svc.lastRequest.ToolChoice)
}

func TestChatModel_Stream(t *testing.T) {
	svc := &fakeService{
		streamChunks: []completion.Chunk{
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{Role: "assistant", Content: swag.String("Hel")}}}},
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{Content: swag.String("lo")}}}},
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{}, FinishReason: "stop"}}},
		},
	}
	m, err := New("gpt-4o-mini", WithService(svc))
	require.NoError(t, err)

	events, err := m.Stream(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "Hi"},
	})
	require.NoError(t, err)

	var sequence []string
	var chunks []messages.Chunk
	var final *ChatResult
	for event := range events {
		switch e := event.(type) {
		case Delim:
			sequence = append(sequence, "delim:"+e.Delim)
		case ChunkEvent:
			sequence = append(sequence, "chunk")
			chunks = append(chunks, e.Chunk)
		case ResponseEvent:
			sequence = append(sequence, "response")
			res := e.Result
			final = &res
		case ErrorEvent:
			t.Fatalf("unexpected error event: %v", e.Err)
		}
	}

	assert.Equal(t, []string{"delim:start", "chunk", "chunk", "chunk", "delim:end", "response"}, sequence)
	require.Len(t, chunks, 3)
	assert.Equal(t, messages.AssistantChunk{Content: "Hel"}, chunks[0])

	require.NotNil(t, final)
	require.Len(t, final.Generations, 1)
	assert.Equal(t, "stop", final.Generations[0].FinishReason)

	ai, ok := final.Generations[0].Message.(messages.AIMessage)
	require.True(t, ok)
	assert.Equal(t, "Hello", ai.Content)
}

func TestChatModel_Stream_ToolCalls(t *testing.T) {
	idx := 0
	svc := &fakeService{
		streamChunks: []completion.Chunk{
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{
				Role: "assistant",
				ToolCalls: []completion.DeltaToolCall{{
					Index:    &idx,
					ID:       "call_1",
					Function: &completion.DeltaFunction{Name: "get_weather", Arguments: `{"location"`},
				}},
			}}}},
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{
				ToolCalls: []completion.DeltaToolCall{{
					Index:    &idx,
					Function: &completion.DeltaFunction{Arguments: `:"Paris"}`},
				}},
			}, FinishReason: "tool_calls"}}},
		},
	}
	m, err := New("gpt-4o-mini", WithService(svc))
	require.NoError(t, err)

	events, err := m.Stream(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "weather?"},
	})
	require.NoError(t, err)

	result, err := GenerateFromStream(events)
	require.NoError(t, err)
	require.Len(t, result.Generations, 1)

	ai, ok := result.Generations[0].Message.(messages.AIMessage)
	require.True(t, ok)
	require.Len(t, ai.ToolCalls, 1)
	assert.Equal(t, "call_1", ai.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", ai.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"location": "Paris"}, ai.ToolCalls[0].Args)
}

func TestChatModel_Stream_TokenCallback(t *testing.T) {
	svc := &fakeService{
		streamChunks: []completion.Chunk{
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{Role: "assistant", Content: swag.String("Hel")}}}},
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{Content: swag.String("lo")}}}},
		},
	}

	var tokens []string
	m, err := New("gpt-4o-mini",
		WithService(svc),
		WithTokenCallback(func(token string, _ messages.Chunk) {
			tokens = append(tokens, token)
		}),
	)
	require.NoError(t, err)

	events, err := m.Stream(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "Hi"},
	})
	require.NoError(t, err)

	for range events {
	}
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
}

func TestChatModel_Stream_Error(t *testing.T) {
	svc := &fakeService{streamErr: errors.New("boom")}
	m, err := New("gpt-4o-mini", WithService(svc))
	require.NoError(t, err)

	_, err = m.Stream(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "Hi"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestChatModel_InvokeStreaming(t *testing.T) {
	svc := &fakeService{
		streamChunks: []completion.Chunk{
			{Choices: []completion.ChunkChoice{{Delta: completion.Delta{Role: "assistant", Content: swag.String("hi")}, FinishReason: "stop"}}},
		},
	}
	m, err := New("gpt-4o-mini", WithService(svc), WithStreaming(true))
	require.NoError(t, err)

	result, err := m.Invoke(context.Background(), []messages.Message{
		messages.HumanMessage{Content: "Hi"},
	})
	require.NoError(t, err)
	require.Len(t, result.Generations, 1)

	ai, ok := result.Generations[0].Message.(messages.AIMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", ai.Content)
}

func TestGenerateFromStream_Empty(t *testing.T) {
	events := make(chan StreamEvent)
	close(events)

	_, err := GenerateFromStream(events)
	require.Error(t, err)

	var unexpected *UnexpectedResponseTypeError
	assert.ErrorAs(t, err, &unexpected)
}
