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

// Package einoext 桥接 Eino 生态：把 Eino 的 ChatModel 与工具
// 适配到本仓库的模型客户端与工具契约上。
package einoext

import (
	"context"
	"encoding/json"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"agent-platform/internal/model/llm"
	"agent-platform/pkg/errors"
)

// ChatModelClient 把 Eino ToolCallingChatModel 适配为 llm.Client
type ChatModelClient struct {
	inner    einomodel.ToolCallingChatModel
	provider string
	model    string

	mu        sync.Mutex
	lastUsage llm.TokenUsage
}

// NewChatModelClient 包装一个已创建的 Eino ChatModel
func NewChatModelClient(inner einomodel.ToolCallingChatModel, provider, model string) *ChatModelClient {
	return &ChatModelClient{inner: inner, provider: provider, model: model}
}

// Model 实现 llm.Client
func (c *ChatModelClient) Model() string { return c.model }

// Provider 实现 llm.Client
func (c *ChatModelClient) Provider() string { return c.provider }

// LastTokenUsage 实现 llm.Client
func (c *ChatModelClient) LastTokenUsage() llm.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// ChatWithTools 实现 llm.Client
func (c *ChatModelClient) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, options llm.GenerateOptions) (*llm.Reply, error) {
	cm := c.inner
	if len(tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(tools))
		for _, t := range tools {
			info, err := toolInfoFromSchema(t)
			if err != nil {
				return nil, err
			}
			infos = append(infos, info)
		}
		withTools, err := cm.WithTools(infos)
		if err != nil {
			return nil, errors.NewAgentError(errors.KindModelAdapter, "eino WithTools: "+err.Error())
		}
		cm = withTools
	}

	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		in = append(in, &schema.Message{
			Role:       schema.RoleType(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}

	var opts []einomodel.Option
	if options.Temperature > 0 {
		temp := float32(options.Temperature)
		opts = append(opts, einomodel.WithTemperature(temp))
	}
	if options.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(options.MaxTokens))
	}

	out, err := cm.Generate(ctx, in, opts...)
	if err != nil {
		return nil, errors.NewAgentError(errors.KindModelAdapter, "eino Generate: "+err.Error())
	}

	reply := &llm.Reply{Content: out.Content}
	for _, tc := range out.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, errors.NewAgentError(errors.KindModelAdapter,
					"eino tool call arguments are not valid JSON: "+err.Error())
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		reply.Usage = llm.TokenUsage{
			InputTokens:  out.ResponseMeta.Usage.PromptTokens,
			OutputTokens: out.ResponseMeta.Usage.CompletionTokens,
		}
	}

	c.mu.Lock()
	c.lastUsage = reply.Usage
	c.mu.Unlock()
	return reply, nil
}

// toolInfoFromSchema 把 function-calling 参数表转为 Eino ToolInfo
func toolInfoFromSchema(t llm.ToolSchema) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{}
	props, _ := t.Parameters["properties"].(map[string]any)
	requiredSet := map[string]bool{}
	if req, ok := t.Parameters["required"].([]string); ok {
		for _, r := range req {
			requiredSet[r] = true
		}
	} else if req, ok := t.Parameters["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				requiredSet[s] = true
			}
		}
	}
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		params[name] = &schema.ParameterInfo{
			Type:     einoDataType(typ),
			Desc:     desc,
			Required: requiredSet[name],
		}
	}
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func einoDataType(t string) schema.DataType {
	switch t {
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	case "null":
		return schema.Null
	default:
		return schema.String
	}
}
