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

package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AppendAndTotals(t *testing.T) {
	m := NewMemory("计算 1+1")
	m.Append(StepRecord{Index: 1, ActionType: "code", InputTokens: 100, OutputTokens: 20})
	m.Append(StepRecord{Index: 2, ActionType: "none", ErrorKind: "model_adapter", InputTokens: 0, OutputTokens: 0})
	m.Append(StepRecord{Index: 3, ActionType: "tool_call", InputTokens: 150, OutputTokens: 30})

	require.Equal(t, 3, m.Len())
	in, out := m.TokenTotals()
	// 失败步一样计入累计
	assert.Equal(t, 250, in)
	assert.Equal(t, 50, out)
	assert.Equal(t, "计算 1+1", m.Task())
}

func TestMemory_RecentWindow(t *testing.T) {
	m := NewMemory("t")
	for i := 1; i <= 5; i++ {
		m.Append(StepRecord{Index: i})
	}
	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, 4, recent[0].Index)
	assert.Equal(t, 5, recent[1].Index)

	all := m.Recent(0)
	assert.Len(t, all, 5)
}

func TestMemory_RecordsAreCopies(t *testing.T) {
	m := NewMemory("t")
	m.Append(StepRecord{Index: 1, Observation: "ok"})
	records := m.Records()
	records[0].Observation = "mutated"
	assert.Equal(t, "ok", m.Records()[0].Observation)
}

func TestMemory_ConcurrentReadersWithWriter(t *testing.T) {
	m := NewMemory("t")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			m.Append(StepRecord{Index: i, InputTokens: 1})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = m.Len()
			_, _ = m.TokenTotals()
			_ = m.Recent(10)
		}
	}()
	wg.Wait()
	in, _ := m.TokenTotals()
	assert.Equal(t, 100, in)
}
