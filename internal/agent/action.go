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
	"regexp"
	"strings"

	"agent-platform/internal/model/llm"
	agenterrors "agent-platform/pkg/errors"
)

// FinalAnswerToolName 原生工具调用里用于提交最终答案的保留工具名
const FinalAnswerToolName = "final_answer"

// Action 模型单步决定的动作；具体类型为 CodeAction、ToolCallAction、FinalAnswerAction
type Action interface {
	// Label 动作类别标签（code | tool_call | final），用于事件与指标
	Label() string
}

// CodeAction 在沙箱里执行一段代码
type CodeAction struct {
	Code string
}

// ToolCallAction 调用注册表里的一个工具
type ToolCallAction struct {
	ID   string
	Name string
	Args map[string]any
}

// FinalAnswerAction 提交最终答案并结束 Run
type FinalAnswerAction struct {
	Answer any
}

func (CodeAction) Label() string        { return "code" }
func (ToolCallAction) Label() string    { return "tool_call" }
func (FinalAnswerAction) Label() string { return "final" }

var codeBlockRe = regexp.MustCompile("(?s)```(?:py|python)?\\s*\n(.*?)```")

// ParseAction 从模型回复中解析动作。
// 优先取原生工具调用（final_answer 为终止哨兵）；否则从正文提取代码围栏。
// 两者都没有时返回 parse_error，由调用方作为纠偏上下文回灌。
func ParseAction(reply *llm.Reply) (Action, error) {
	if reply == nil {
		return nil, agenterrors.NewAgentError(agenterrors.KindParse, "模型回复为空")
	}
	if len(reply.ToolCalls) > 0 {
		tc := reply.ToolCalls[0]
		if tc.Name == FinalAnswerToolName {
			var answer any
			if tc.Args != nil {
				answer = tc.Args["answer"]
			}
			return FinalAnswerAction{Answer: answer}, nil
		}
		return ToolCallAction{ID: tc.ID, Name: tc.Name, Args: tc.Args}, nil
	}
	if m := codeBlockRe.FindStringSubmatch(reply.Content); m != nil {
		code := strings.TrimSpace(m[1])
		if code != "" {
			return CodeAction{Code: code}, nil
		}
	}
	return nil, agenterrors.NewAgentError(agenterrors.KindParse,
		"模型回复中既没有工具调用也没有代码围栏（```py ... ```）")
}
