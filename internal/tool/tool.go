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

// Package tool 定义声明式的工具契约：输入输出类型在注册期校验，
// 调用参数在分发前按声明校验，越过声明的调用不会触及工具实现。
package tool

import (
	"context"
	"fmt"
	"sort"

	"agent-platform/pkg/errors"
)

// 工具声明允许的类型全集
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeImage   = "image"
	TypeAudio   = "audio"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeAny     = "any"
	TypeNull    = "null"
)

var authorizedTypes = map[string]bool{
	TypeString: true, TypeNumber: true, TypeBoolean: true,
	TypeImage: true, TypeAudio: true, TypeArray: true,
	TypeObject: true, TypeAny: true, TypeNull: true,
}

// AuthorizedTypes 返回允许的类型名（排序后，用于错误信息与文档）
func AuthorizedTypes() []string {
	out := make([]string, 0, len(authorizedTypes))
	for t := range authorizedTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Input 单个输入参数的声明。
// Nullable 必须与 HasDefault 一致：有默认值的参数可缺省，反之必填。
type Input struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Nullable    bool   `json:"nullable,omitempty"`
	Default     any    `json:"default,omitempty"`
	HasDefault  bool   `json:"-"`
}

// Definition 工具的完整声明
type Definition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Inputs      map[string]Input `json:"inputs"`
	OutputType  string           `json:"output_type"`
}

// Tool 声明加调用能力
type Tool interface {
	Definition() Definition
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ValidateDefinition 注册期校验：类型全集成员关系与 nullable/default 耦合
func ValidateDefinition(def Definition) error {
	if def.Name == "" {
		return errors.NewAgentError(errors.KindToolArgument, "tool name must not be empty")
	}
	if def.Description == "" {
		return errors.NewAgentError(errors.KindToolArgument,
			fmt.Sprintf("tool %q: description must not be empty", def.Name))
	}
	if !authorizedTypes[def.OutputType] {
		return errors.NewAgentError(errors.KindToolArgument,
			fmt.Sprintf("tool %q: output type %q is not one of %v", def.Name, def.OutputType, AuthorizedTypes()))
	}
	for name, in := range def.Inputs {
		if !authorizedTypes[in.Type] {
			return errors.NewAgentError(errors.KindToolArgument,
				fmt.Sprintf("tool %q: input %q has type %q, not one of %v", def.Name, name, in.Type, AuthorizedTypes()))
		}
		if in.Nullable != in.HasDefault {
			return errors.NewAgentError(errors.KindToolArgument,
				fmt.Sprintf("tool %q: input %q nullable=%v but default presence=%v; the two must agree",
					def.Name, name, in.Nullable, in.HasDefault))
		}
	}
	return nil
}

// ValidateArgs 调用前校验：必填缺失、未知参数名、类型不符都在这里拒绝。
// 返回补齐默认值后的参数表。
func ValidateArgs(def Definition, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(def.Inputs))
	for name := range args {
		if _, ok := def.Inputs[name]; !ok {
			return nil, errors.NewAgentError(errors.KindToolArgument,
				fmt.Sprintf("tool %q: unknown argument %q", def.Name, name))
		}
	}
	for name, in := range def.Inputs {
		v, given := args[name]
		if !given {
			if !in.Nullable {
				return nil, errors.NewAgentError(errors.KindToolArgument,
					fmt.Sprintf("tool %q: missing required argument %q", def.Name, name))
			}
			out[name] = in.Default
			continue
		}
		if err := checkType(def.Name, name, in.Type, v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func checkType(toolName, argName, declared string, v any) error {
	ok := false
	switch declared {
	case TypeAny:
		ok = true
	case TypeNull:
		ok = v == nil
	case TypeString, TypeImage, TypeAudio:
		// image/audio 以路径或引用字符串传递
		_, ok = v.(string)
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			ok = true
		}
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeArray:
		switch v.(type) {
		case []any, []string:
			ok = true
		}
	case TypeObject:
		_, ok = v.(map[string]any)
	}
	if !ok {
		return errors.NewAgentError(errors.KindToolArgument,
			fmt.Sprintf("tool %q: argument %q expects %s, got %T", toolName, argName, declared, v))
	}
	return nil
}

// funcTool 以函数实现 Tool；New 在构造期执行声明校验
type funcTool struct {
	def Definition
	fn  func(ctx context.Context, args map[string]any) (any, error)
}

// New 从声明与函数构造工具；声明非法时返回错误而不是产出残缺工具
func New(def Definition, fn func(ctx context.Context, args map[string]any) (any, error)) (Tool, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	return &funcTool{def: def, fn: fn}, nil
}

func (t *funcTool) Definition() Definition { return t.def }

func (t *funcTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}
