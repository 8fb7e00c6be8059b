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
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"agent-platform/internal/agent"
	"agent-platform/internal/interp"
	"agent-platform/internal/runtime/runstore"
	agenterrors "agent-platform/pkg/errors"
	"agent-platform/pkg/metrics"
)

// Handler HTTP 处理器；依赖 Run 服务与其底层事件存储
type Handler struct {
	service *agent.Service
}

// NewHandler 创建 HTTP 处理器
func NewHandler(service *agent.Service) *Handler {
	return &Handler{service: service}
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	ctx.Response.Header.SetContentType("text/plain; version=0.0.4; charset=utf-8")
	if err := metrics.WritePrometheus(ctx.Response.BodyWriter()); err != nil {
		ctx.SetStatusCode(consts.StatusInternalServerError)
	}
}

type createRunRequest struct {
	Task string `json:"task"`
}

// CreateRun 创建 Run 并后台执行
// POST /api/runs
func (h *Handler) CreateRun(c context.Context, ctx *app.RequestContext) {
	var req createRunRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体必须是 JSON"})
		return
	}
	if req.Task == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "task is required"})
		return
	}
	runID, err := h.service.StartRun(c, req.Task)
	if err != nil {
		hlog.CtxErrorf(c, "start run failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusAccepted, map[string]string{"run_id": runID})
}

// GetRun 查询 Run 当前状态与答案
// GET /api/runs/:id
func (h *Handler) GetRun(c context.Context, ctx *app.RequestContext) {
	runID := ctx.Param("id")
	state, err := h.service.RunState(c, runID)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			ctx.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("run %q not found", runID)})
			return
		}
		hlog.CtxErrorf(c, "load run state %s: %v", runID, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, state)
}

// ListRuns 列出已知 Run
// GET /api/runs
func (h *Handler) ListRuns(c context.Context, ctx *app.RequestContext) {
	ids, err := h.service.Store().ListRunIDs(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	ctx.JSON(consts.StatusOK, map[string]any{"run_ids": ids})
}

// CancelRun 请求取消进行中的 Run（生效点在步边界）
// POST /api/runs/:id/cancel
func (h *Handler) CancelRun(c context.Context, ctx *app.RequestContext) {
	runID := ctx.Param("id")
	if !h.service.Cancel(runID) {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("run %q 不在执行中", runID)})
		return
	}
	ctx.JSON(consts.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

type runEventView struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// RunEvents 返回 Run 的有序事件列表；?stream=1 时切换为 SSE 推送
// GET /api/runs/:id/events
func (h *Handler) RunEvents(c context.Context, ctx *app.RequestContext) {
	runID := ctx.Param("id")
	if string(ctx.Query("stream")) == "1" {
		h.streamRunEvents(c, ctx, runID)
		return
	}
	events, version, err := h.service.Store().ListEvents(c, runID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if version == 0 {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("run %q not found", runID)})
		return
	}
	views := make([]runEventView, 0, len(events))
	for _, ev := range events {
		views = append(views, eventView(ev))
	}
	ctx.JSON(consts.StatusOK, map[string]any{"run_id": runID, "version": version, "events": views})
}

// ListTools 工具目录（声明 + function-calling Schema）
// GET /api/tools
func (h *Handler) ListTools(c context.Context, ctx *app.RequestContext) {
	reg := h.service.Registry()
	if reg == nil {
		ctx.JSON(consts.StatusOK, map[string]any{"tools": []any{}})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"tools": reg.Definitions()})
}

type sandboxEvalRequest struct {
	Code              string   `json:"code"`
	AuthorizedImports []string `json:"authorized_imports,omitempty"`
}

type sandboxEvalResponse struct {
	Stdout string `json:"stdout"`
	Value  any    `json:"value,omitempty"`
	Report string `json:"report"`
}

// SandboxEval 直接在一次性沙箱里求值一段代码
// POST /api/sandbox/eval
func (h *Handler) SandboxEval(c context.Context, ctx *app.RequestContext) {
	var req sandboxEvalRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体必须是 JSON"})
		return
	}
	if req.Code == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}
	opts := h.service.SandboxOptions()
	if len(req.AuthorizedImports) > 0 {
		imports := append([]string{}, interp.DefaultAuthorizedImports...)
		imports = append(imports, req.AuthorizedImports...)
		opts.AuthorizedImports = imports
	}
	it := interp.New(opts)
	res, err := it.Execute(c, req.Code)
	if err != nil {
		var agentErr *agenterrors.AgentError
		resp := map[string]any{"error": err.Error(), "kind": string(agenterrors.KindOf(err))}
		if errors.As(err, &agentErr) && agentErr.Line > 0 {
			resp["line"] = agentErr.Line
		}
		if res != nil {
			resp["stdout"] = res.Stdout
		}
		ctx.JSON(consts.StatusUnprocessableEntity, resp)
		return
	}
	out := sandboxEvalResponse{Stdout: res.Stdout, Report: res.Report()}
	if res.HasValue {
		out.Value = res.Value
	}
	ctx.JSON(consts.StatusOK, out)
}

func eventView(ev runstore.RunEvent) runEventView {
	return runEventView{
		ID:        ev.ID,
		Type:      string(ev.Type),
		Payload:   json.RawMessage(ev.Payload),
		CreatedAt: ev.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
