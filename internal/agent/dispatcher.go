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

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agent-platform/internal/interp"
	"agent-platform/internal/tool"
	"agent-platform/internal/tool/registry"
	agenterrors "agent-platform/pkg/errors"
	"agent-platform/pkg/metrics"
	"agent-platform/pkg/tracing"
)

// Observation 一次动作执行的观察结果
type Observation struct {
	// Text 回灌给模型的观察文本
	Text string
	// IsFinal 动作是否提交了最终答案
	IsFinal bool
	// FinalAnswer IsFinal 时的答案值（原生 Go 值）
	FinalAnswer any
}

// Dispatcher 按动作类型分发：代码进沙箱，工具调用走注册表。
// 同一 Run 内复用同一个 Dispatcher，沙箱命名空间按配置跨步保留。
type Dispatcher struct {
	registry         *registry.Registry
	sandbox          *interp.Interpreter
	persistNamespace bool
}

// NewDispatcher 创建动作分发器。registry 中的工具会以下划线化的名字
// 注入沙箱命名空间（如 http.request → http_request），代码动作可直接调用。
func NewDispatcher(reg *registry.Registry, sandboxOpts interp.Options, persistNamespace bool) *Dispatcher {
	d := &Dispatcher{
		registry:         reg,
		sandbox:          interp.New(sandboxOpts),
		persistNamespace: persistNamespace,
	}
	if reg != nil {
		for _, t := range reg.List() {
			def := t.Definition()
			d.sandbox.RegisterFunc(sandboxFuncName(def.Name), d.sandboxToolFunc(def.Name))
		}
	}
	return d
}

// Dispatch 执行动作并返回观察结果。
// 出错时返回的 Observation 仍可能带有部分输出（如沙箱已捕获的 stdout）。
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (Observation, error) {
	switch a := action.(type) {
	case FinalAnswerAction:
		return Observation{
			Text:        interp.Stringify(a.Answer),
			IsFinal:     true,
			FinalAnswer: a.Answer,
		}, nil
	case CodeAction:
		return d.dispatchCode(ctx, a)
	case ToolCallAction:
		return d.dispatchToolCall(ctx, a)
	default:
		return Observation{}, agenterrors.NewAgentError(agenterrors.KindRuntime,
			fmt.Sprintf("未知的动作类型 %T", action))
	}
}

func (d *Dispatcher) dispatchCode(ctx context.Context, a CodeAction) (Observation, error) {
	if !d.persistNamespace {
		d.sandbox.Reset()
	}
	start := time.Now()
	res, err := d.sandbox.Execute(ctx, a.Code)
	metrics.SandboxEvalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		obs := Observation{}
		if res != nil {
			obs.Text = res.Report()
		}
		return obs, err
	}
	return Observation{
		Text:        res.Report(),
		IsFinal:     res.FinalAnswer,
		FinalAnswer: res.Value,
	}, nil
}

func (d *Dispatcher) dispatchToolCall(ctx context.Context, a ToolCallAction) (Observation, error) {
	if d.registry == nil {
		return Observation{}, agenterrors.NewAgentError(agenterrors.KindToolArgument, "没有可用的工具注册表")
	}
	t, ok := d.registry.Get(a.Name)
	if !ok {
		return Observation{}, agenterrors.NewAgentError(agenterrors.KindToolArgument,
			fmt.Sprintf("未注册的工具 %q", a.Name))
	}
	def := t.Definition()
	args, err := tool.ValidateArgs(def, a.Args)
	if err != nil {
		return Observation{}, err
	}
	toolCtx, span := tracing.StartToolSpan(ctx, def.Name)
	start := time.Now()
	out, err := t.Invoke(toolCtx, args)
	span.End()
	metrics.ToolDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return Observation{}, err
	}
	return Observation{Text: formatOutput(tool.CoerceOutput(def.OutputType, out))}, nil
}

// sandboxToolFunc 把注册表工具包装成沙箱可调用的函数；
// 只有单输入的工具允许用位置参数，其余必须用关键字参数。
func (d *Dispatcher) sandboxToolFunc(name string) interp.ExternalFunc {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		t, ok := d.registry.Get(name)
		if !ok {
			return nil, agenterrors.NewAgentError(agenterrors.KindToolArgument,
				fmt.Sprintf("未注册的工具 %q", name))
		}
		def := t.Definition()
		callArgs := make(map[string]any, len(kwargs)+len(args))
		for k, v := range kwargs {
			callArgs[k] = v
		}
		if len(args) > 0 {
			if len(def.Inputs) != 1 || len(args) > 1 {
				return nil, agenterrors.NewAgentError(agenterrors.KindToolArgument,
					fmt.Sprintf("工具 %q 需要关键字参数", name))
			}
			for inputName := range def.Inputs {
				callArgs[inputName] = args[0]
			}
		}
		validated, err := tool.ValidateArgs(def, callArgs)
		if err != nil {
			return nil, err
		}
		out, err := t.Invoke(ctx, validated)
		if err != nil {
			return nil, err
		}
		coerced := tool.CoerceOutput(def.OutputType, out)
		if coerced.Media != nil {
			return formatOutput(coerced), nil
		}
		return out, nil
	}
}

func sandboxFuncName(toolName string) string {
	return strings.ReplaceAll(toolName, ".", "_")
}

func formatOutput(o tool.Output) string {
	if o.Media != nil {
		return fmt.Sprintf("[%s] %s", o.Media.MIMEType, o.Media.Path)
	}
	return o.Text
}
