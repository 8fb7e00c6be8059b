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

// Package memory 维护单次 Run 的步级记录：追加后不可变、可并发读取。
package memory

import (
	"sync"
	"time"
)

// StepRecord 一步的完整记录；Append 之后不再修改
type StepRecord struct {
	Index        int           `json:"index"` // 从 1 开始
	ModelReply   string        `json:"model_reply"`
	ActionType   string        `json:"action_type"` // code | tool_call | final | none
	ActionDetail string        `json:"action_detail,omitempty"`
	Observation  string        `json:"observation,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Memory 单次 Run 的追加式步级记忆
type Memory struct {
	mu       sync.RWMutex
	task     string
	records  []StepRecord
	totalIn  int
	totalOut int
}

// NewMemory 创建一次 Run 的记忆，task 为用户任务描述
func NewMemory(task string) *Memory {
	return &Memory{task: task}
}

// Task 返回任务描述
func (m *Memory) Task() string {
	return m.task
}

// Append 追加一条步级记录；token 计数累加（失败步同样计入）
func (m *Memory) Append(rec StepRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	m.records = append(m.records, rec)
	m.totalIn += rec.InputTokens
	m.totalOut += rec.OutputTokens
}

// Len 当前记录条数
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Records 返回全部记录的副本
func (m *Memory) Records() []StepRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StepRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Recent 返回最近 n 条记录的副本；n<=0 返回全部
func (m *Memory) Recent(n int) []StepRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.records
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]StepRecord, len(list))
	copy(out, list)
	return out
}

// TokenTotals 累计 token 用量（包含失败步）
func (m *Memory) TokenTotals() (inputTokens, outputTokens int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalIn, m.totalOut
}
