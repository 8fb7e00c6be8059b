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
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"

	"agent-platform/internal/tool"
	"agent-platform/pkg/errors"
)

// invokableTool 把 Eino InvokableTool 适配为本仓库的 tool.Tool。
// Eino 侧参数是自由 JSON，这里以单个 object 入参承接。
type invokableTool struct {
	def   tool.Definition
	inner einotool.InvokableTool
}

// WrapInvokable 包装 Eino 工具；Info 在包装期取一次，失败即拒绝
func WrapInvokable(ctx context.Context, t einotool.InvokableTool) (tool.Tool, error) {
	info, err := t.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "eino tool info")
	}
	def := tool.Definition{
		Name:        info.Name,
		Description: info.Desc,
		Inputs: map[string]tool.Input{
			"input": {
				Type:        tool.TypeObject,
				Description: "工具入参（对象，按 Eino 工具自身的 schema 填写）",
				Nullable:    true,
				Default:     map[string]any{},
				HasDefault:  true,
			},
		},
		OutputType: tool.TypeString,
	}
	if err := tool.ValidateDefinition(def); err != nil {
		return nil, err
	}
	return &invokableTool{def: def, inner: t}, nil
}

// Definition 实现 tool.Tool
func (a *invokableTool) Definition() tool.Definition { return a.def }

// Invoke 实现 tool.Tool
func (a *invokableTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	payload := args["input"]
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal eino tool input")
	}
	out, err := a.inner.InvokableRun(ctx, string(raw))
	if err != nil {
		return nil, errors.NewAgentError(errors.KindToolExecution, a.def.Name+": "+err.Error())
	}
	return out, nil
}
