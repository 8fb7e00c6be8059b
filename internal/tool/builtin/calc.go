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

package builtin

import (
	"context"

	"agent-platform/internal/interp"
	"agent-platform/internal/tool"
	"agent-platform/pkg/errors"
)

// CalcTool 实现 calc.eval：在一次性的沙箱命名空间里求值单个表达式。
// 只放行 math，循环上限收得很小，表达式算不完就不该用这个工具。
type CalcTool struct{}

// NewCalcTool 创建 calc.eval 工具
func NewCalcTool() *CalcTool {
	return &CalcTool{}
}

// Definition 实现 tool.Tool
func (t *CalcTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "calc.eval",
		Description: "计算单个数学表达式，例如 \"(2 + 3) * 4\" 或 \"math.sqrt(2)\"。",
		Inputs: map[string]tool.Input{
			"expression": {Type: tool.TypeString, Description: "待求值的表达式"},
		},
		OutputType: tool.TypeString,
	}
}

// Invoke 实现 tool.Tool
func (t *CalcTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	if expr == "" {
		return nil, errors.NewAgentError(errors.KindToolExecution, "expression must not be empty")
	}
	it := interp.New(interp.Options{
		AuthorizedImports: []string{"math"},
		MaxLoopIterations: 1000,
	})
	res, err := it.Execute(ctx, "import math\n"+expr)
	if err != nil {
		return nil, errors.Wrap(err, "calc.eval")
	}
	if !res.HasValue {
		return nil, errors.NewAgentError(errors.KindToolExecution, "expression produced no value")
	}
	return interp.Stringify(res.Value), nil
}
