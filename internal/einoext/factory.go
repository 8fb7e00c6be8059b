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

package einoext

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"agent-platform/internal/model/llm"
	"agent-platform/pkg/config"
)

// NewClientFromConfig 根据 provider 配置创建 llm.Client。
// OpenAI 兼容提供商走 Eino ChatModel；其余回落到内置客户端。
func NewClientFromConfig(ctx context.Context, provider, model string, pc config.ProviderConfig) (llm.Client, error) {
	if pc.APIKey == "" {
		return nil, fmt.Errorf("LLM provider %q api_key not configured", provider)
	}
	switch provider {
	case "openai", "qwen":
		cfg := &openai.ChatModelConfig{
			Model:  model,
			APIKey: pc.APIKey,
		}
		if pc.BaseURL != "" {
			cfg.BaseURL = pc.BaseURL
		}
		chatModel, err := openai.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create openai ChatModel: %w", err)
		}
		return NewChatModelClient(chatModel, provider, model), nil
	default:
		return llm.NewClient(provider, model, pc.APIKey, pc.BaseURL)
	}
}

// NewDefaultClient 根据 cfg.Model.Default（格式 provider.model_key）创建默认 LLM 客户端。
// 按 rate_limits.llm 配置包一层限流。
func NewDefaultClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	if cfg == nil || cfg.Model.Default == "" {
		return nil, fmt.Errorf("model.default not configured")
	}
	provider, modelKey, err := parseDefaultKey(cfg.Model.Default)
	if err != nil {
		return nil, err
	}
	pc, ok := cfg.Model.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("LLM provider %q not configured", provider)
	}
	modelName := modelKey
	if mi, ok := pc.Models[modelKey]; ok && mi.Name != "" {
		modelName = mi.Name
	}
	client, err := NewClientFromConfig(ctx, provider, modelName, pc)
	if err != nil {
		return nil, err
	}
	if rl, ok := cfg.RateLimits.LLM[provider]; ok && rl.RequestsPerMinute > 0 {
		burst := rl.MaxConcurrent
		if burst <= 0 {
			burst = 1
		}
		client = llm.NewRateLimitedClient(client, rl.RequestsPerMinute/60, burst)
	}
	return client, nil
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 openai.gpt_4o_mini，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
