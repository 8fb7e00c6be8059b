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

package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/runtime/runstore"
)

func TestEmitter_OneStepSequence(t *testing.T) {
	ctx := context.Background()
	store := runstore.NewMemoryStore()
	e := NewEmitter(store, "run-1")

	require.NoError(t, e.RunCreated(ctx, "查一下天气"))
	require.NoError(t, e.StepStarted(ctx, 1))
	require.NoError(t, e.ModelResponse(ctx, ModelResponsePayload{Step: 1, ToolCalls: 1, InputTokens: 120, OutputTokens: 18}))
	require.NoError(t, e.ActionExecuted(ctx, ActionExecutedPayload{Step: 1, Action: "final", Observation: "42"}))
	require.NoError(t, e.FinalAnswer(ctx, "42"))
	require.NoError(t, e.RunCompleted(ctx, RunCompletedPayload{Status: "FINISHED", Answer: "42", Steps: 1, InputTokens: 120, OutputTokens: 18}))

	events, ver, err := store.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 6, ver)
	want := []runstore.EventType{
		runstore.RunCreated,
		runstore.StepStarted,
		runstore.ModelResponseReceived,
		runstore.ActionExecuted,
		runstore.FinalAnswerEmitted,
		runstore.RunCompleted,
	}
	for i, typ := range want {
		assert.Equal(t, typ, events[i].Type, "event %d", i)
	}

	var created RunCreatedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &created))
	assert.Equal(t, "查一下天气", created.Task)

	var completed RunCompletedPayload
	require.NoError(t, json.Unmarshal(events[5].Payload, &completed))
	assert.Equal(t, "FINISHED", completed.Status)
	assert.Equal(t, 120, completed.InputTokens)
}

func TestEmitter_RunFailed(t *testing.T) {
	ctx := context.Background()
	store := runstore.NewMemoryStore()
	e := NewEmitter(store, "run-1")

	require.NoError(t, e.RunCreated(ctx, "t"))
	require.NoError(t, e.RunFailed(ctx, "model_adapter", "连续 3 次适配器失败"))

	events, _, err := store.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, runstore.RunFailed, events[1].Type)

	var failed RunFailedPayload
	require.NoError(t, json.Unmarshal(events[1].Payload, &failed))
	assert.Equal(t, "model_adapter", failed.Kind)
}
