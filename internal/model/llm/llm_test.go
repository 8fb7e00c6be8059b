// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/pkg/errors"
)

func TestOpenAIClient_ChatWithTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		tools, _ := req["tools"].([]any)
		require.Len(t, tools, 1)

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"content": "",
				"tool_calls": [{"id": "call_1", "function": {"name": "search", "arguments": "{\"q\": \"golang\"}"}}]
			}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClientWithBaseURL("openai", "gpt-4o-mini", "test-key", srv.URL)
	require.NoError(t, err)

	reply, err := c.ChatWithTools(context.Background(),
		[]Message{{Role: "user", Content: "find golang docs"}},
		[]ToolSchema{{Name: "search", Description: "搜索", Parameters: map[string]any{"type": "object"}}},
		GenerateOptions{},
	)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "search", reply.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"q": "golang"}, reply.ToolCalls[0].Args)
	assert.Equal(t, TokenUsage{InputTokens: 120, OutputTokens: 30}, reply.Usage)
	assert.Equal(t, TokenUsage{InputTokens: 120, OutputTokens: 30}, c.LastTokenUsage())
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClientWithBaseURL("openai", "", "bad", srv.URL)
	require.NoError(t, err)
	c.client.SetRetryCount(0)

	_, err = c.ChatWithTools(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindModelAdapter, errors.KindOf(err))
}

func TestClaudeClient_ChatWithTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "you are helpful", req["system"])

		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "tu_1", "name": "weather", "input": {"city": "beijing"}}
			],
			"usage": {"input_tokens": 200, "output_tokens": 50}
		}`))
	}))
	defer srv.Close()

	t.Setenv("ANTHROPIC_BASE_URL", srv.URL)
	c, err := NewClaudeClient("", "test-key")
	require.NoError(t, err)

	reply, err := c.ChatWithTools(context.Background(),
		[]Message{
			{Role: "system", Content: "you are helpful"},
			{Role: "user", Content: "weather in beijing"},
		},
		[]ToolSchema{{Name: "weather", Description: "查天气", Parameters: map[string]any{"type": "object"}}},
		GenerateOptions{},
	)
	require.NoError(t, err)
	assert.Equal(t, "let me check", reply.Content)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "weather", reply.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"city": "beijing"}, reply.ToolCalls[0].Args)
	assert.Equal(t, TokenUsage{InputTokens: 200, OutputTokens: 50}, c.LastTokenUsage())
}

type stubClient struct {
	replies int
	usage   TokenUsage
}

func (s *stubClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema, options GenerateOptions) (*Reply, error) {
	s.replies++
	return &Reply{Content: "ok", Usage: s.usage}, nil
}
func (s *stubClient) LastTokenUsage() TokenUsage { return s.usage }
func (s *stubClient) Model() string              { return "stub" }
func (s *stubClient) Provider() string           { return "stub" }

func TestRateLimitedClient_Passthrough(t *testing.T) {
	inner := &stubClient{usage: TokenUsage{InputTokens: 1, OutputTokens: 2}}
	c := NewRateLimitedClient(inner, 0, 0)

	reply, err := c.ChatWithTools(context.Background(), nil, nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, 1, inner.replies)
	assert.Equal(t, "stub", c.Model())
	assert.Equal(t, inner.usage, c.LastTokenUsage())
}

func TestRateLimitedClient_CancelledContext(t *testing.T) {
	inner := &stubClient{}
	c := NewRateLimitedClient(inner, 0.001, 1)

	// 耗尽突发额度
	_, err := c.ChatWithTools(context.Background(), nil, nil, GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ChatWithTools(ctx, nil, nil, GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.replies)
}

func TestNewClient_Factory(t *testing.T) {
	c, err := NewClient("claude", "", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "claude", c.Provider())

	c, err = NewClient("qwen", "qwen-max", "k", "https://dashscope.example/v1")
	require.NoError(t, err)
	assert.Equal(t, "qwen", c.Provider())
	assert.Equal(t, "qwen-max", c.Model())
}
