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

package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"agent-platform/pkg/config"
)

// Middleware 中间件管理器
type Middleware struct {
	cfg config.APIConfig
}

// NewMiddleware 创建中间件管理器
func NewMiddleware(cfg config.APIConfig) *Middleware {
	return &Middleware{cfg: cfg}
}

// CORS 跨域中间件；allow_origins 为空时放行所有来源
func (m *Middleware) CORS() app.HandlerFunc {
	allowOrigin := "*"
	if len(m.cfg.CORS.AllowOrigins) > 0 {
		allowOrigin = strings.Join(m.cfg.CORS.AllowOrigins, ", ")
	}
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", allowOrigin)
		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if string(ctx.Method()) == "OPTIONS" {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

// Auth Bearer token 认证；auth_token 未配置时直接放行
func (m *Middleware) Auth() app.HandlerFunc {
	token := m.cfg.Middleware.AuthToken
	return func(c context.Context, ctx *app.RequestContext) {
		if !m.cfg.Middleware.Auth || token == "" {
			ctx.Next(c)
			return
		}
		auth := string(ctx.GetHeader("Authorization"))
		if auth != "Bearer "+token {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		ctx.Next(c)
	}
}

// RateLimit 进程内限流；rate_limit 未启用时放行
func (m *Middleware) RateLimit() app.HandlerFunc {
	if !m.cfg.Middleware.RateLimit || m.cfg.Middleware.RateLimitRPS <= 0 {
		return func(c context.Context, ctx *app.RequestContext) {
			ctx.Next(c)
		}
	}
	rps := m.cfg.Middleware.RateLimitRPS
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	return func(c context.Context, ctx *app.RequestContext) {
		if !limiter.Allow() {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{"error": "请求过于频繁，请稍后再试"})
			return
		}
		ctx.Next(c)
	}
}
