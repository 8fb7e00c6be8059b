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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/model/llm"
	"agent-platform/internal/runtime/runstore"
	"agent-platform/internal/tool/registry"
	"agent-platform/pkg/config"
)

func waitForTerminal(t *testing.T, s *Service, runID string) *RunState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		state, err := s.RunState(context.Background(), runID)
		if err == nil && state.Status != string(StatusRunning) {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
	return nil
}

func TestService_StartRunToFinished(t *testing.T) {
	store := runstore.NewMemoryStore()
	client := &scriptedClient{steps: []scriptedStep{
		{reply: finalAnswerReply("北京", llm.TokenUsage{InputTokens: 50, OutputTokens: 5})},
	}}
	cfg := &config.Config{}
	cfg.Agent.MaxSteps = 5
	s := NewService(cfg, client, registry.New(), store, nil)

	runID, err := s.StartRun(context.Background(), "中国的首都是哪里")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	state := waitForTerminal(t, s, runID)
	assert.Equal(t, string(StatusFinished), state.Status)
	assert.Equal(t, "北京", state.Answer)
	assert.Equal(t, "中国的首都是哪里", state.Task)
	assert.Equal(t, 50, state.InputTokens)
}

func TestService_EmptyTaskRejected(t *testing.T) {
	s := NewService(nil, &scriptedClient{steps: []scriptedStep{{reply: &llm.Reply{}}}}, registry.New(), runstore.NewMemoryStore(), nil)
	_, err := s.StartRun(context.Background(), "")
	require.Error(t, err)
}

func TestService_RunStateUnknownRun(t *testing.T) {
	s := NewService(nil, &scriptedClient{steps: []scriptedStep{{reply: &llm.Reply{}}}}, registry.New(), runstore.NewMemoryStore(), nil)
	_, err := s.RunState(context.Background(), "run-missing")
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
}

func TestService_IndependentRunsAreIsolated(t *testing.T) {
	store := runstore.NewMemoryStore()
	// 两个 Run 各自执行代码设置同名变量，互不可见
	client := &scriptedClient{steps: []scriptedStep{
		{reply: codeReply("x = 1\nfinal_answer(x)", llm.TokenUsage{})},
	}}
	s := NewService(nil, client, registry.New(), store, nil)

	id1, err := s.StartRun(context.Background(), "任务 A")
	require.NoError(t, err)
	id2, err := s.StartRun(context.Background(), "任务 B")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	s1 := waitForTerminal(t, s, id1)
	s2 := waitForTerminal(t, s, id2)
	assert.Equal(t, string(StatusFinished), s1.Status)
	assert.Equal(t, string(StatusFinished), s2.Status)
	assert.Equal(t, "任务 A", s1.Task)
	assert.Equal(t, "任务 B", s2.Task)
}
