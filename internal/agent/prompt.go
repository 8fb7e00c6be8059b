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
	"fmt"
	"strings"

	"agent-platform/internal/agent/memory"
	"agent-platform/internal/model/llm"
	"agent-platform/internal/tool/registry"
)

const systemPromptTemplate = `你是一个逐步解决任务的智能体。每一步你只做一件事：

1. 调用一个工具（通过原生 tool call），或者
2. 写一段代码，放在 ` + "```py" + ` 围栏里，在沙箱中执行。代码里可以用 print() 观察中间结果，
   已注册的工具以函数形式可用：%s。
3. 得到最终答案时，调用 final_answer 工具（参数 answer），或在代码里调用 final_answer(x)。

沙箱支持的 import 仅限白名单；每步执行后的观察结果会回灌给你。
任务：%s`

// buildMessages 组装一次模型调用的消息序列：系统提示 + 任务 + 最近 N 步的动作/观察
func buildMessages(mem *memory.Memory, reg *registry.Registry, contextWindow int) []llm.Message {
	var toolNames []string
	if reg != nil {
		for _, t := range reg.List() {
			toolNames = append(toolNames, sandboxFuncName(t.Definition().Name))
		}
	}
	names := "（无）"
	if len(toolNames) > 0 {
		names = strings.Join(toolNames, ", ")
	}
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, names, mem.Task())},
		{Role: "user", Content: mem.Task()},
	}
	for _, rec := range mem.Recent(contextWindow) {
		reply := rec.ModelReply
		if reply == "" && rec.ActionDetail != "" {
			reply = rec.ActionDetail
		}
		if reply != "" {
			messages = append(messages, llm.Message{Role: "assistant", Content: reply})
		}
		messages = append(messages, llm.Message{Role: "user", Content: observationMessage(rec)})
	}
	return messages
}

// observationMessage 把一条步级记录折叠为回灌文本；错误步带上纠偏提示
func observationMessage(rec memory.StepRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "第 %d 步观察：\n", rec.Index)
	if rec.Observation != "" {
		b.WriteString(rec.Observation)
	}
	if rec.ErrorMessage != "" {
		if rec.Observation != "" {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "错误（%s）：%s\n请修正后重试。", rec.ErrorKind, rec.ErrorMessage)
	}
	return b.String()
}

// toolSchemas 注册表工具 + final_answer 哨兵的 function-calling 目录
func toolSchemas(reg *registry.Registry) []llm.ToolSchema {
	var schemas []llm.ToolSchema
	if reg != nil {
		for _, def := range reg.Definitions() {
			s := registry.SchemaForLLM(def)
			schemas = append(schemas, llm.ToolSchema{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			})
		}
	}
	schemas = append(schemas, llm.ToolSchema{
		Name:        FinalAnswerToolName,
		Description: "提交最终答案并结束任务",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":        "string",
					"description": "最终答案",
				},
			},
			"required": []string{"answer"},
		},
	})
	return schemas
}
