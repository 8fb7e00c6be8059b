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

// Package interp 实现沙箱化的 Python 子集解释器。
// 语法按封闭白名单收窄：只接受显式支持的语句与表达式，
// import 仅放行授权列表内的模块，循环与调用深度受硬上限约束。
package interp

import (
	"context"
	"fmt"

	agenterrors "agent-platform/pkg/errors"
)

// Options 解释器资源与安全策略
type Options struct {
	// AuthorizedImports 允许 import 的模块名；空切片表示全部拒绝
	AuthorizedImports []string
	// MaxLoopIterations 单次执行累计循环迭代上限，0 取默认值
	MaxLoopIterations int
	// MaxCallDepth 用户函数调用深度上限，0 取默认值
	MaxCallDepth int
	// MaxOutputBytes print 输出上限，0 取默认值
	MaxOutputBytes int
}

const (
	defaultMaxLoopIterations = 10000
	defaultMaxCallDepth      = 100
	defaultMaxOutputBytes    = 64 * 1024
)

func (o Options) withDefaults() Options {
	if o.AuthorizedImports == nil {
		o.AuthorizedImports = DefaultAuthorizedImports
	}
	if o.MaxLoopIterations == 0 {
		o.MaxLoopIterations = defaultMaxLoopIterations
	}
	if o.MaxCallDepth == 0 {
		o.MaxCallDepth = defaultMaxCallDepth
	}
	if o.MaxOutputBytes == 0 {
		o.MaxOutputBytes = defaultMaxOutputBytes
	}
	return o
}

// ExternalFunc 宿主侧注入的可调用；args/kwargs 已转换为原生 Go 值
type ExternalFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Interpreter 跨多次 Execute 保留命名空间（变量与已定义函数）
type Interpreter struct {
	opts    Options
	globals *env
}

func New(opts Options) *Interpreter {
	return &Interpreter{opts: opts.withDefaults(), globals: newEnv(nil)}
}

// Reset 清空命名空间
func (it *Interpreter) Reset() {
	it.globals = newEnv(nil)
}

// SetVariable 向命名空间注入原生值
func (it *Interpreter) SetVariable(name string, v any) {
	it.globals.set(name, fromNative(v))
}

// Variable 读取命名空间变量，返回原生值
func (it *Interpreter) Variable(name string) (any, bool) {
	v, ok := it.globals.get(name)
	if !ok {
		return nil, false
	}
	return toNative(v), true
}

// RegisterFunc 将宿主函数暴露为解释器内的可调用（工具注入用）
func (it *Interpreter) RegisterFunc(name string, fn ExternalFunc) {
	it.globals.set(name, &builtinFunc{
		Name: name,
		Fn: func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
			nativeArgs := make([]any, len(args))
			for i, a := range args {
				nativeArgs[i] = toNative(a)
			}
			var nativeKw map[string]any
			if len(kwargs) > 0 {
				nativeKw = make(map[string]any, len(kwargs))
				for k, v := range kwargs {
					nativeKw[k] = toNative(v)
				}
			}
			out, err := fn(ev.ctx, nativeArgs, nativeKw)
			if err != nil {
				return nil, err
			}
			return fromNative(out), nil
		},
	})
}

// Result 一次代码块执行的产出
type Result struct {
	// Stdout print 捕获的输出
	Stdout string
	// Value 末尾表达式语句的值（原生 Go 值）
	Value any
	// HasValue 代码块是否以表达式语句收尾
	HasValue bool
	// FinalAnswer 为 true 时 Value 是 final_answer 提交的最终答案
	FinalAnswer bool

	valueStr string
}

// Report 格式化为回灌给模型的观察文本
func (r *Result) Report() string {
	if r.HasValue || r.FinalAnswer {
		return "Stdout:\n" + r.Stdout + "\nOutput: " + r.valueStr
	}
	return "Stdout:\n" + r.Stdout
}

// Execute 解析并执行一段代码。执行出错时返回的 Result 仍带有已捕获的 stdout。
func (it *Interpreter) Execute(ctx context.Context, code string) (*Result, error) {
	stmts, err := parse(code)
	if err != nil {
		return &Result{}, err
	}

	ev := newEvaluator(ctx, it.opts, it.globals)
	last, err := ev.execBlock(stmts, it.globals)
	res := &Result{Stdout: ev.stdout.String()}
	if err != nil {
		if fa, ok := err.(finalAnswerSignal); ok {
			res.Value = toNative(fa.v)
			res.valueStr = pyStr(fa.v)
			res.HasValue = true
			res.FinalAnswer = true
			return res, nil
		}
		if _, ok := err.(returnSignal); ok {
			return res, agenterrors.NewAgentError(agenterrors.KindRuntime, "'return' outside function")
		}
		if _, ok := err.(breakSignal); ok {
			return res, agenterrors.NewAgentError(agenterrors.KindRuntime, "'break' outside loop")
		}
		if _, ok := err.(continueSignal); ok {
			return res, agenterrors.NewAgentError(agenterrors.KindRuntime, "'continue' outside loop")
		}
		return res, err
	}

	// execBlock 末尾表达式语句的值即为输出
	if lastIsExpr(stmts) {
		res.Value = toNative(last)
		res.valueStr = pyStr(last)
		res.HasValue = true
	}
	return res, nil
}

func lastIsExpr(stmts []stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*exprStmt)
	return ok
}

// ---- 原生值与解释器值互转 ----

func fromNative(v any) value {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		return float64(t)
	case float64:
		return t
	case string:
		return t
	case []any:
		items := make([]value, len(t))
		for i, el := range t {
			items[i] = fromNative(el)
		}
		return &pyList{Items: items}
	case map[string]any:
		d := newDict()
		for k, el := range t {
			_ = d.Set(k, fromNative(el))
		}
		return d
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toNative(v value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return t
	case *pyList:
		out := make([]any, len(t.Items))
		for i, el := range t.Items {
			out[i] = toNative(el)
		}
		return out
	case *pyTuple:
		out := make([]any, len(t.Items))
		for i, el := range t.Items {
			out[i] = toNative(el)
		}
		return out
	case *pyDict:
		out := make(map[string]any, t.Len())
		for _, p := range t.Pairs() {
			out[pyStr(p.Key)] = toNative(p.Val)
		}
		return out
	case *pySet:
		items := t.Items()
		out := make([]any, len(items))
		for i, el := range items {
			out[i] = toNative(el)
		}
		return out
	case rangeVal:
		var out []any
		if t.Step > 0 {
			for i := t.Start; i < t.Stop; i += t.Step {
				out = append(out, i)
			}
		}
		return out
	default:
		return pyStr(v)
	}
}

// Stringify 按解释器的 str() 语义格式化原生值（观测与工具输出共用）
func Stringify(v any) string {
	return pyStr(fromNative(v))
}
