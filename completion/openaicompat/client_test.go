package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chainadapt/anyllm/completion"
	"github.com/go-openapi/swag"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})

	return New(option.WithBaseURL(server.URL+"/v1"), option.WithAPIKey("test-key"))
}

func TestClient_Complete(t *testing.T) {
	c := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-123",
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {"role": "assistant", "content": "Hello there"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 10, "total_tokens": 15}
		}`)
	})

	resp, err := c.Complete(context.Background(), completion.Request{
		Model: "gpt-4o-mini",
		Messages: []completion.Message{
			{Role: "user", Content: swag.String("Hi")},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "Hello there", swag.StringValue(resp.Choices[0].Message.Content))
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(5), resp.Usage.PromptTokens)
	assert.Equal(t, int64(10), resp.Usage.CompletionTokens)
}

func TestClient_Complete_ToolCalls(t *testing.T) {
	c := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-456",
			"model": "gpt-4o-mini",
			"choices": [{
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"Paris\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	})

	resp, err := c.Complete(context.Background(), completion.Request{
		Model: "gpt-4o-mini",
		Messages: []completion.Message{
			{Role: "user", Content: swag.String("weather in paris?")},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	msg := resp.Choices[0].Message
	assert.Nil(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)

	var tc completion.ToolCall
	require.NoError(t, json.Unmarshal(msg.ToolCalls[0], &tc))
	assert.Equal(t, "call_abc", tc.ID)
	assert.Equal(t, "get_weather", tc.Function.Name)
	assert.JSONEq(t, `{"location":"Paris"}`, tc.Function.Arguments)
}

func TestClient_Complete_RequestShape(t *testing.T) {
	var body map[string]any
	c := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","model":"m","choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})

	_, err := c.Complete(context.Background(), completion.Request{
		Model: "gpt-4o-mini",
		Messages: []completion.Message{
			{Role: "user", Content: swag.String("Hi")},
		},
		Stop:       []string{"###"},
		ToolChoice: "required",
		Tools: []completion.Tool{
			{
				Type: "function",
				Function: completion.ToolFunction{
					Name:       "get_weather",
					Parameters: map[string]any{"type": "object"},
				},
			},
		},
		Extra: map[string]any{"temperature": 0.2},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"###"}, body["stop"])
	assert.Equal(t, "required", body["tool_choice"])
	assert.Equal(t, 0.2, body["temperature"])

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_weather", fn["name"])
}

func TestClient_Stream(t *testing.T) {
	chunks := []string{
		`{"id":"c1","model":"gpt-4o-mini","choices":[{"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"c1","model":"gpt-4o-mini","choices":[{"delta":{"content":"lo"}}]}`,
		`{"id":"c1","model":"gpt-4o-mini","choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}

	c := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			_, err := fmt.Fprintf(w, "data: %s\n\n", chunk)
			require.NoError(t, err)
		}
		_, err := fmt.Fprint(w, "data: [DONE]\n\n")
		require.NoError(t, err)
	})

	strm, err := c.Stream(context.Background(), completion.Request{
		Model: "gpt-4o-mini",
		Messages: []completion.Message{
			{Role: "user", Content: swag.String("Hi")},
		},
	})
	require.NoError(t, err)
	defer strm.Close()

	var content string
	var finish string
	for strm.Next() {
		chunk := strm.Current()
		require.Len(t, chunk.Choices, 1)
		if chunk.Choices[0].Delta.Content != nil {
			content += *chunk.Choices[0].Delta.Content
		}
		if chunk.Choices[0].FinishReason != "" {
			finish = chunk.Choices[0].FinishReason
		}
	}
	require.NoError(t, strm.Err())
	assert.Equal(t, "Hello", content)
	assert.Equal(t, "stop", finish)
}

func TestClient_Stream_ToolCallFragments(t *testing.T) {
	chunks := []string{
		`{"id":"c2","choices":[{"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"c2","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"location\""}}]}}]}`,
		`{"id":"c2","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"Paris\"}"}}]}}]}`,
		`{"id":"c2","choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	}

	c := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	strm, err := c.Stream(context.Background(), completion.Request{
		Model: "gpt-4o-mini",
		Messages: []completion.Message{
			{Role: "user", Content: swag.String("weather?")},
		},
	})
	require.NoError(t, err)
	defer strm.Close()

	var name, args string
	for strm.Next() {
		for _, choice := range strm.Current().Choices {
			for _, tc := range choice.Delta.ToolCalls {
				require.NotNil(t, tc.Index)
				assert.Equal(t, 0, *tc.Index)
				if tc.Function != nil {
					name += tc.Function.Name
					args += tc.Function.Arguments
				}
			}
		}
	}
	require.NoError(t, strm.Err())
	assert.Equal(t, "get_weather", name)
	assert.JSONEq(t, `{"location":"Paris"}`, args)
}

func TestForEndpoint(t *testing.T) {
	a := ForEndpoint("http://localhost:4000")
	b := ForEndpoint("http://localhost:4000")
	assert.Same(t, a, b)

	other := ForEndpoint("http://localhost:8080")
	assert.NotSame(t, a, other)
}
