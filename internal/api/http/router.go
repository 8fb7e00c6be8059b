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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"

	"agent-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 创建 Hertz server 并注册全部路由；opts 透传（如链路追踪）
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	options := append([]hertzconfig.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(options...)

	h.Use(r.middleware.CORS())
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api", r.middleware.RateLimit())
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/tools", r.handler.ListTools)

	auth := r.middleware.Auth()
	api.POST("/runs", auth, r.handler.CreateRun)
	api.GET("/runs", auth, r.handler.ListRuns)
	api.GET("/runs/:id", auth, r.handler.GetRun)
	api.GET("/runs/:id/events", auth, r.handler.RunEvents)
	api.POST("/runs/:id/cancel", auth, r.handler.CancelRun)
	api.POST("/sandbox/eval", auth, r.handler.SandboxEval)

	return h
}
