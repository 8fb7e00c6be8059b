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

// Package events 在 runstore 之上提供 Run 的有序事件发布。
// 事件流是观测性的：订阅者读不动不会阻塞 Run 本身。
package events

import (
	"context"
	"encoding/json"
	"sync"

	"agent-platform/internal/runtime/runstore"
)

// RunCreatedPayload run_created 事件体
type RunCreatedPayload struct {
	Task string `json:"task"`
}

// StepStartedPayload step_started 事件体
type StepStartedPayload struct {
	Step int `json:"step"`
}

// ModelResponsePayload model_response_received 事件体
type ModelResponsePayload struct {
	Step         int    `json:"step"`
	Content      string `json:"content,omitempty"`
	ToolCalls    int    `json:"tool_calls"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// ActionExecutedPayload action_executed 事件体
type ActionExecutedPayload struct {
	Step         int    `json:"step"`
	Action       string `json:"action"` // code | tool_call | final | none
	Observation  string `json:"observation,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FinalAnswerPayload final_answer 事件体
type FinalAnswerPayload struct {
	Answer string `json:"answer"`
}

// RunCompletedPayload run_completed 事件体
type RunCompletedPayload struct {
	Status       string `json:"status"` // FINISHED | MAX_STEPS_EXCEEDED
	Answer       string `json:"answer,omitempty"`
	Steps        int    `json:"steps"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// RunFailedPayload run_failed 事件体
type RunFailedPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Emitter 单个 Run 的事件发布器；自身是该 run 事件流的唯一写入方
type Emitter struct {
	store   runstore.RunStore
	runID   string
	mu      sync.Mutex
	version int
}

// NewEmitter 创建 Run 事件发布器
func NewEmitter(store runstore.RunStore, runID string) *Emitter {
	return &Emitter{store: store, runID: runID}
}

// RunID 返回所属 Run ID
func (e *Emitter) RunID() string {
	return e.runID
}

func (e *Emitter) emit(ctx context.Context, typ runstore.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	newVersion, err := e.store.Append(ctx, e.runID, e.version, runstore.RunEvent{
		Type:    typ,
		Payload: data,
	})
	if err != nil {
		return err
	}
	e.version = newVersion
	return nil
}

// RunCreated 发布 run_created
func (e *Emitter) RunCreated(ctx context.Context, task string) error {
	return e.emit(ctx, runstore.RunCreated, RunCreatedPayload{Task: task})
}

// StepStarted 发布 step_started
func (e *Emitter) StepStarted(ctx context.Context, step int) error {
	return e.emit(ctx, runstore.StepStarted, StepStartedPayload{Step: step})
}

// ModelResponse 发布 model_response_received
func (e *Emitter) ModelResponse(ctx context.Context, p ModelResponsePayload) error {
	return e.emit(ctx, runstore.ModelResponseReceived, p)
}

// ActionExecuted 发布 action_executed
func (e *Emitter) ActionExecuted(ctx context.Context, p ActionExecutedPayload) error {
	return e.emit(ctx, runstore.ActionExecuted, p)
}

// FinalAnswer 发布 final_answer
func (e *Emitter) FinalAnswer(ctx context.Context, answer string) error {
	return e.emit(ctx, runstore.FinalAnswerEmitted, FinalAnswerPayload{Answer: answer})
}

// RunCompleted 发布 run_completed（FINISHED 或 MAX_STEPS_EXCEEDED）
func (e *Emitter) RunCompleted(ctx context.Context, p RunCompletedPayload) error {
	return e.emit(ctx, runstore.RunCompleted, p)
}

// RunFailed 发布 run_failed
func (e *Emitter) RunFailed(ctx context.Context, kind, message string) error {
	return e.emit(ctx, runstore.RunFailed, RunFailedPayload{Kind: kind, Message: message})
}
