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

package runstore

import "time"

// EventType Run 事件类型（事件流语义，用于重放与审计）
type EventType string

const (
	RunCreated            EventType = "run_created"
	StepStarted           EventType = "step_started"
	ModelResponseReceived EventType = "model_response_received"
	ActionExecuted        EventType = "action_executed"
	FinalAnswerEmitted    EventType = "final_answer"
	RunCompleted          EventType = "run_completed"
	RunFailed             EventType = "run_failed"
)

// IsTerminal 是否终止事件（final_answer 之后仍会追加 run_completed）
func (t EventType) IsTerminal() bool {
	return t == RunCompleted || t == RunFailed
}

// RunEvent 单条不可变事件；Run 的真实形态是事件流
type RunEvent struct {
	ID        string    // 单条事件唯一 ID；Append 时为空可由实现生成
	RunID     string    // 所属 Run ID
	Type      EventType // 事件类型
	Payload   []byte    // JSON，由各 EventType 语义定义
	CreatedAt time.Time
}
