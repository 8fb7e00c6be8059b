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
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"agent-platform/internal/agent"
	"agent-platform/internal/model/llm"
	"agent-platform/internal/runtime/runstore"
	"agent-platform/internal/tool/registry"
	"agent-platform/pkg/config"
)

// fixedClient 每次调用都返回同一个最终答案的 llm.Client 测试替身
type fixedClient struct {
	mu        sync.Mutex
	lastUsage llm.TokenUsage
}

func (c *fixedClient) ChatWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, options llm.GenerateOptions) (*llm.Reply, error) {
	reply := &llm.Reply{
		ToolCalls: []llm.ToolCall{{Name: agent.FinalAnswerToolName, Args: map[string]any{"answer": "42"}}},
		Usage:     llm.TokenUsage{InputTokens: 10, OutputTokens: 2},
	}
	c.mu.Lock()
	c.lastUsage = reply.Usage
	c.mu.Unlock()
	return reply, nil
}

func (c *fixedClient) LastTokenUsage() llm.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

func (c *fixedClient) Model() string    { return "fixed" }
func (c *fixedClient) Provider() string { return "test" }

func newTestServer(t *testing.T) (*server.Hertz, *agent.Service) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Agent.MaxSteps = 3
	service := agent.NewService(cfg, &fixedClient{}, registry.New(), runstore.NewMemoryStore(), nil)
	s := NewRouter(NewHandler(service), newTestMiddleware()).Build(":0")
	return s, service
}

func performJSON(t *testing.T, h *server.Hertz, method, path string, body []byte) *ut.ResponseRecorder {
	t.Helper()
	return ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func waitForStatus(t *testing.T, service *agent.Service, runID, status string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state, err := service.RunState(context.Background(), runID)
		if err == nil && state.Status == status {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach status %s in time", runID, status)
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestServer(t)
	w := ut.PerformRequest(h.Engine, "GET", "/api/health", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Errorf("HealthCheck status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("ok")) {
		t.Errorf("HealthCheck body: %s", resp.Body())
	}
}

func TestCreateRun_ValidatesTask(t *testing.T) {
	h, _ := newTestServer(t)
	w := performJSON(t, h, "POST", "/api/runs", []byte(`{}`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Errorf("CreateRun empty task: status got %d, want 400", got)
	}
	w = performJSON(t, h, "POST", "/api/runs", []byte(`not json`))
	if got := w.Result().StatusCode(); got != 400 {
		t.Errorf("CreateRun bad body: status got %d, want 400", got)
	}
}

func TestCreateRun_ThenGetRun(t *testing.T) {
	h, service := newTestServer(t)
	w := performJSON(t, h, "POST", "/api/runs", []byte(`{"task":"答案是什么"}`))
	resp := w.Result()
	if resp.StatusCode() != 202 {
		t.Fatalf("CreateRun status: got %d, want 202", resp.StatusCode())
	}
	var created map[string]string
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		t.Fatalf("CreateRun body: %v", err)
	}
	runID := created["run_id"]
	if runID == "" {
		t.Fatal("CreateRun: missing run_id")
	}

	waitForStatus(t, service, runID, "FINISHED")

	w = ut.PerformRequest(h.Engine, "GET", "/api/runs/"+runID, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	resp = w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("GetRun status: got %d", resp.StatusCode())
	}
	var state agent.RunState
	if err := json.Unmarshal(resp.Body(), &state); err != nil {
		t.Fatalf("GetRun body: %v", err)
	}
	if state.Status != "FINISHED" || state.Answer != "42" {
		t.Errorf("GetRun state: %+v", state)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	h, _ := newTestServer(t)
	w := ut.PerformRequest(h.Engine, "GET", "/api/runs/run-nope", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 404 {
		t.Errorf("GetRun missing run: status got %d, want 404", got)
	}
}

func TestRunEvents_ListsOrderedEvents(t *testing.T) {
	h, service := newTestServer(t)
	w := performJSON(t, h, "POST", "/api/runs", []byte(`{"task":"t"}`))
	var created map[string]string
	_ = json.Unmarshal(w.Result().Body(), &created)
	runID := created["run_id"]
	waitForStatus(t, service, runID, "FINISHED")

	w = ut.PerformRequest(h.Engine, "GET", "/api/runs/"+runID+"/events", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("RunEvents status: got %d", resp.StatusCode())
	}
	var out struct {
		RunID  string         `json:"run_id"`
		Events []runEventView `json:"events"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("RunEvents body: %v", err)
	}
	want := []string{"run_created", "step_started", "model_response_received", "action_executed", "final_answer", "run_completed"}
	if len(out.Events) != len(want) {
		t.Fatalf("RunEvents count: got %d, want %d (%+v)", len(out.Events), len(want), out.Events)
	}
	for i, typ := range want {
		if out.Events[i].Type != typ {
			t.Errorf("event %d: got %s, want %s", i, out.Events[i].Type, typ)
		}
	}
}

func TestSandboxEval(t *testing.T) {
	h, _ := newTestServer(t)
	w := performJSON(t, h, "POST", "/api/sandbox/eval", []byte(`{"code":"(2 / 2) * 4"}`))
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("SandboxEval status: got %d, body %s", resp.StatusCode(), resp.Body())
	}
	var out sandboxEvalResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("SandboxEval body: %v", err)
	}
	if out.Report != "Stdout:\n\nOutput: 4.0" {
		t.Errorf("SandboxEval report: %q", out.Report)
	}
}

func TestSandboxEval_TaggedFailure(t *testing.T) {
	h, _ := newTestServer(t)
	w := performJSON(t, h, "POST", "/api/sandbox/eval", []byte(`{"code":"import os"}`))
	resp := w.Result()
	if resp.StatusCode() != 422 {
		t.Fatalf("SandboxEval unauthorized import: status got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("unauthorized_import")) {
		t.Errorf("SandboxEval body: %s", resp.Body())
	}
}

func TestListTools(t *testing.T) {
	h, _ := newTestServer(t)
	w := ut.PerformRequest(h.Engine, "GET", "/api/tools", &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Errorf("ListTools status: got %d", got)
	}
}
