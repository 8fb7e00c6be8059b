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

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryStore_ListEvents_Empty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	events, ver, err := s.ListEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if ver != 0 || len(events) != 0 {
		t.Errorf("expected version 0 and no events, got version %d and %d events", ver, len(events))
	}
}

func TestMemoryStore_Append_ListEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	runID := "run-1"
	payload, _ := json.Marshal(map[string]string{"task": "test"})
	ev := RunEvent{RunID: runID, Type: RunCreated, Payload: payload}

	newVer, err := s.Append(ctx, runID, 0, ev)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if newVer != 1 {
		t.Errorf("expected newVersion 1, got %d", newVer)
	}

	events, ver, err := s.ListEvents(ctx, runID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if ver != 1 || len(events) != 1 {
		t.Fatalf("expected version 1 and 1 event, got version %d and %d events", ver, len(events))
	}
	if events[0].Type != RunCreated || events[0].RunID != runID {
		t.Errorf("event mismatch: %+v", events[0])
	}
	if events[0].ID == "" {
		t.Error("expected generated event ID")
	}
}

func TestMemoryStore_Append_VersionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	runID := "run-1"

	_, _ = s.Append(ctx, runID, 0, RunEvent{Type: RunCreated})
	_, err := s.Append(ctx, runID, 0, RunEvent{Type: StepStarted}) // expectedVersion 0 but current is 1
	if err != ErrVersionMismatch {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
	newVer, err := s.Append(ctx, runID, 1, RunEvent{Type: StepStarted})
	if err != nil {
		t.Fatalf("Append with correct version: %v", err)
	}
	if newVer != 2 {
		t.Errorf("expected newVersion 2, got %d", newVer)
	}
}

func TestMemoryStore_PayloadIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	payload := []byte(`{"k":"v"}`)
	_, _ = s.Append(ctx, "run-1", 0, RunEvent{Type: RunCreated, Payload: payload})
	payload[0] = 'X'

	events, _, _ := s.ListEvents(ctx, "run-1")
	if string(events[0].Payload) != `{"k":"v"}` {
		t.Errorf("stored payload mutated: %s", events[0].Payload)
	}
	events[0].Payload[0] = 'Y'
	again, _, _ := s.ListEvents(ctx, "run-1")
	if string(again[0].Payload) != `{"k":"v"}` {
		t.Errorf("returned payload aliases store: %s", again[0].Payload)
	}
}

func TestMemoryStore_Watch_ReplayThenLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()
	runID := "run-1"
	_, _ = s.Append(ctx, runID, 0, RunEvent{Type: RunCreated})
	_, _ = s.Append(ctx, runID, 1, RunEvent{Type: StepStarted})

	ch, err := s.Watch(ctx, runID)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	// 重放已有两条
	first := <-ch
	second := <-ch
	if first.Type != RunCreated || second.Type != StepStarted {
		t.Errorf("replay order wrong: %s, %s", first.Type, second.Type)
	}

	// 追加后收到 live 事件
	_, _ = s.Append(ctx, runID, 2, RunEvent{Type: RunCompleted})
	select {
	case live := <-ch:
		if live.Type != RunCompleted {
			t.Errorf("expected run_completed, got %s", live.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestMemoryStore_Watch_CancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()
	ch, err := s.Watch(ctx, "run-1")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestMemoryStore_Watch_SlowConsumerDetached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()
	runID := "run-1"

	ch, err := s.Watch(ctx, runID)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	// 不消费，灌满缓冲后写入端必须不被阻塞
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < watchChanBuffer+8; i++ {
			if _, err := s.Append(ctx, runID, i, RunEvent{Type: StepStarted}); err != nil {
				t.Errorf("Append %d: %v", i, err)
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Append blocked on slow watcher")
	}

	// 订阅者被断开：channel 被关闭（读尽缓冲后 ok=false）
	closed := false
	for i := 0; i < watchChanBuffer+16; i++ {
		if _, ok := <-ch; !ok {
			closed = true
			break
		}
	}
	if !closed {
		t.Error("expected slow watcher channel to be closed")
	}
}

func TestMemoryStore_ListRunIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Append(ctx, "run-a", 0, RunEvent{Type: RunCreated})
	_, _ = s.Append(ctx, "run-b", 0, RunEvent{Type: RunCreated})
	_, _ = s.Append(ctx, "run-a", 1, RunEvent{Type: RunCompleted})

	ids, err := s.ListRunIDs(ctx)
	if err != nil {
		t.Fatalf("ListRunIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Errorf("unexpected run ids: %v", ids)
	}
}
