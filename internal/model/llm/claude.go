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

// ClaudeClient Claude 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client

	mu        sync.Mutex
	lastUsage TokenUsage
}

// NewClaudeClient 创建新的 Claude 客户端
func NewClaudeClient(model, apiKey string) (*ClaudeClient, error) {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	baseURL := "https://api.anthropic.com/v1"
	if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
		baseURL = envURL
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string { return c.provider }

// LastTokenUsage 最近一次成功调用的 token 用量
func (c *ClaudeClient) LastTokenUsage() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// ChatWithTools 实现 Client
func (c *ClaudeClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema, options GenerateOptions) (*Reply, error) {
	// system 消息单独提升到 system 字段
	var system string
	reqMessages := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := m.Role
		if role == "tool" {
			role = "user"
		}
		reqMessages = append(reqMessages, map[string]any{"role": role, "content": m.Content})
	}

	maxTokens := options.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	request := map[string]any{
		"model":      c.model,
		"messages":   reqMessages,
		"max_tokens": maxTokens,
	}
	if system != "" {
		request["system"] = system
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}
	if len(tools) > 0 {
		reqTools := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			reqTools = append(reqTools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		request["tools"] = reqTools
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "claude: "+err.Error())
	}
	if response.StatusCode() != http.StatusOK {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "claude: "+response.String())
	}

	var result struct {
		Content []struct {
			Type  string         `json:"type"`
			Text  string         `json:"text"`
			ID    string         `json:"id"`
			Name  string         `json:"name"`
			Input map[string]any `json:"input"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "claude: malformed response: "+err.Error())
	}

	reply := &Reply{
		Usage: TokenUsage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			reply.Content += block.Text
		case "tool_use":
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: block.Input,
			})
		}
	}

	c.mu.Lock()
	c.lastUsage = reply.Usage
	c.mu.Unlock()
	return reply, nil
}
