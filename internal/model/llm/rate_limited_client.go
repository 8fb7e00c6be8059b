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

	"golang.org/x/time/rate"
)

// RateLimitedClient 包装任意 Client，在真实调用前执行限流。
// 控制循环每步至多一次模型调用，限流直接作用在 ChatWithTools 上即可。
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient 创建带限流的 LLM 客户端。rps <= 0 时退化为直接调用。
func NewRateLimitedClient(inner Client, rps float64, burst int) *RateLimitedClient {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

// ChatWithTools 实现 Client，调用前等待限流配额
func (c *RateLimitedClient) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema, options GenerateOptions) (*Reply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.inner.ChatWithTools(ctx, messages, tools, options)
}

// LastTokenUsage 实现 Client
func (c *RateLimitedClient) LastTokenUsage() TokenUsage { return c.inner.LastTokenUsage() }

// Model 实现 Client
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 实现 Client
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
