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

package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"agent-platform/internal/tool"
	"agent-platform/pkg/errors"
)

// Registry 工具注册表：注册、发现、供 LLM 使用的 Schema 列表。
// 注册即校验：声明非法的工具不会进入表内。
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// New 创建新的 Registry
func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具；声明校验失败或重名时返回错误
func (r *Registry) Register(t tool.Tool) error {
	def := t.Definition()
	if err := tool.ValidateDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return errors.NewAgentError(errors.KindToolArgument,
			fmt.Sprintf("tool %q is already registered", def.Name))
	}
	r.tools[def.Name] = t
	return nil
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 返回所有已注册工具，按名称排序
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Definition().Name < list[j].Definition().Name
	})
	return list
}

// Definitions 返回所有工具声明，按名称排序
func (r *Registry) Definitions() []tool.Definition {
	list := r.List()
	out := make([]tool.Definition, len(list))
	for i, t := range list {
		out[i] = t.Definition()
	}
	return out
}

// ToolSchemaForLLM 单个工具供 LLM 使用的描述（name, description, parameters）
type ToolSchemaForLLM struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SchemaForLLM 把一条声明转为 function-calling 参数 Schema
func SchemaForLLM(def tool.Definition) ToolSchemaForLLM {
	props := make(map[string]any, len(def.Inputs))
	var required []string
	for name, in := range def.Inputs {
		props[name] = map[string]any{
			"type":        jsonType(in.Type),
			"description": in.Description,
		}
		if !in.Nullable {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return ToolSchemaForLLM{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  params,
	}
}

// jsonType 把声明类型映射到 JSON Schema 类型
func jsonType(t string) string {
	switch t {
	case tool.TypeImage, tool.TypeAudio, tool.TypeAny:
		return "string"
	case tool.TypeNull:
		return "null"
	default:
		return t
	}
}

// SchemasForLLM 返回所有工具的 Schema 列表（JSON 序列化供模型适配器使用）
func (r *Registry) SchemasForLLM() ([]byte, error) {
	list := r.List()
	out := make([]ToolSchemaForLLM, 0, len(list))
	for _, t := range list {
		out = append(out, SchemaForLLM(t.Definition()))
	}
	return json.Marshal(out)
}
