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
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// streamRunEvents 以 Server-Sent Events 推送 Run 事件流：
// 先重放已有事件，再持续推送新事件；终止事件（run_completed/run_failed）后结束流。
func (h *Handler) streamRunEvents(c context.Context, ctx *app.RequestContext, runID string) {
	_, version, err := h.service.Store().ListEvents(c, runID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if version == 0 {
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": fmt.Sprintf("run %q not found", runID)})
		return
	}

	watchCtx, cancel := context.WithCancel(c)
	ch, err := h.service.Store().Watch(watchCtx, runID)
	if err != nil {
		cancel()
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		defer pw.Close()
		for ev := range ch {
			view := eventView(ev)
			data, err := json.Marshal(view)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(pw, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				// 客户端断开
				return
			}
			if ev.Type.IsTerminal() {
				return
			}
		}
	}()

	ctx.Response.Header.SetContentType("text/event-stream; charset=utf-8")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.SetBodyStream(pr, -1)
}
