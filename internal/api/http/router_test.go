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
	"bytes"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"

	"agent-platform/internal/agent"
	"agent-platform/internal/api/http/middleware"
	"agent-platform/internal/runtime/runstore"
	"agent-platform/internal/tool/registry"
	"agent-platform/pkg/config"
)

func newTestMiddleware() *middleware.Middleware {
	return middleware.NewMiddleware(config.APIConfig{})
}

func TestRouter_MetricsExposed(t *testing.T) {
	s, _ := newTestServer(t)
	w := ut.PerformRequest(s.Engine, "GET", "/metrics", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("GET /metrics status = %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("agentp_")) {
		t.Errorf("/metrics body missing agentp_ metrics: %.200s", resp.Body())
	}
}

func TestRouter_AuthTokenEnforced(t *testing.T) {
	apiCfg := config.APIConfig{}
	apiCfg.Middleware.Auth = true
	apiCfg.Middleware.AuthToken = "secret"

	cfg := &config.Config{}
	service := agent.NewService(cfg, &fixedClient{}, registry.New(), runstore.NewMemoryStore(), nil)
	s := NewRouter(NewHandler(service), middleware.NewMiddleware(apiCfg)).Build(":0")

	body := []byte(`{"task":"t"}`)
	w := ut.PerformRequest(s.Engine, "POST", "/api/runs",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("POST /api/runs without token: status = %d, want 401", got)
	}

	w = ut.PerformRequest(s.Engine, "POST", "/api/runs",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
		ut.Header{Key: "Authorization", Value: "Bearer secret"})
	if got := w.Result().StatusCode(); got != 202 {
		t.Fatalf("POST /api/runs with token: status = %d, want 202", got)
	}

	// 健康检查不受认证保护
	w = ut.PerformRequest(s.Engine, "GET", "/api/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/health with auth enabled: status = %d, want 200", got)
	}
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	s, _ := newTestServer(t)
	w := ut.PerformRequest(s.Engine, "GET", "/api/nope", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("GET /api/nope status = %d, want 404", got)
	}
}
