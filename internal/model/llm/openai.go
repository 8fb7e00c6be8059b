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
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"agent-platform/pkg/errors"
)

// OpenAIClient OpenAI 兼容客户端（OpenAI / Qwen / DashScope 等）
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client

	mu        sync.Mutex
	lastUsage TokenUsage
}

// NewOpenAIClient 创建新的 OpenAI 客户端（base 优先用 OPENAI_BASE_URL 环境变量）
func NewOpenAIClient(model, apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithBaseURL("openai", model, apiKey, "")
}

// NewOpenAIClientWithBaseURL 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIClientWithBaseURL(provider, model, apiKey, baseURL string) (*OpenAIClient, error) {
	if provider == "" {
		provider = "openai"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }

// LastTokenUsage 最近一次成功调用的 token 用量
func (c *OpenAIClient) LastTokenUsage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// ChatWithTools 实现 Client
func (c *OpenAIClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema, options GenerateOptions) (*Reply, error) {
	reqMessages := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		msg := map[string]any{"role": m.Role, "content": m.Content}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		reqMessages = append(reqMessages, msg)
	}

	request := map[string]any{
		"model":    c.model,
		"messages": reqMessages,
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if options.MaxTokens > 0 {
		request["max_tokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}
	if len(tools) > 0 {
		reqTools := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			reqTools = append(reqTools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		request["tools"] = reqTools
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "openai: "+err.Error())
	}
	if response.StatusCode() != http.StatusOK {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "openai: "+response.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "openai: malformed response: "+err.Error())
	}
	if len(result.Choices) == 0 {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "openai: empty choices")
	}

	msg := result.Choices[0].Message
	reply := &Reply{
		Content: msg.Content,
		Usage: TokenUsage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		var parsedArgs map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &parsedArgs); err != nil {
				return nil, errors.NewAgentError(errors.KindModelAdapter,
					"openai: tool call arguments are not valid JSON: "+err.Error())
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: parsedArgs,
		})
	}

	c.mu.Lock()
	c.lastUsage = reply.Usage
	c.mu.Unlock()
	return reply, nil
}
