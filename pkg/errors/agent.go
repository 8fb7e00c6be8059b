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

package errors

import (
	"errors"
	"fmt"
)

// Kind Agent 运行中的步级错误类别；记录进 Step Record 并作为纠正反馈回传模型
type Kind string

const (
	KindParse                Kind = "parse_error"
	KindUnauthorizedImport   Kind = "unauthorized_import"
	KindUnsupportedConstruct Kind = "unsupported_construct"
	KindResourceLimit        Kind = "resource_limit"
	KindToolArgument         Kind = "tool_argument"
	KindToolExecution        Kind = "tool_execution"
	KindModelAdapter         Kind = "model_adapter"
	KindRuntime              Kind = "runtime_error"
)

// AgentError 带类别与源位置的步级错误；全部可恢复，不得终止宿主进程
type AgentError struct {
	Kind    Kind
	Message string
	Line    int // 0 表示无源位置
	Err     error
}

// Error 实现 error 接口
func (e *AgentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError 创建 AgentError
func NewAgentError(kind Kind, message string) *AgentError {
	return &AgentError{Kind: kind, Message: message}
}

// NewAgentErrorAt 创建带源位置的 AgentError
func NewAgentErrorAt(kind Kind, line int, format string, args ...interface{}) *AgentError {
	return &AgentError{Kind: kind, Line: line, Message: fmt.Sprintf(format, args...)}
}

// KindOf 返回错误的类别；非 AgentError 时返回 KindRuntime
func KindOf(err error) Kind {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindRuntime
}

// IsKind 判断错误是否为指定类别
func IsKind(err error, kind Kind) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
