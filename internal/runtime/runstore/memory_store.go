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
	"sync"
	"time"

	"github.com/google/uuid"
)

const watchChanBuffer = 16

// memoryStore 内存实现：事件流 + 版本 + Watch
type memoryStore struct {
	mu       sync.RWMutex
	byRun    map[string][]RunEvent
	order    []string
	watchers map[string][]chan RunEvent
}

// NewMemoryStore 创建内存版事件存储
func NewMemoryStore() RunStore {
	return &memoryStore{
		byRun:    make(map[string][]RunEvent),
		watchers: make(map[string][]chan RunEvent),
	}
}

func (s *memoryStore) ListEvents(ctx context.Context, runID string) ([]RunEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.byRun[runID]
	version := len(events)
	if version == 0 {
		return nil, 0, nil
	}
	out := make([]RunEvent, version)
	for i := range events {
		out[i] = copyEvent(events[i])
	}
	return out, version, nil
}

func (s *memoryStore) Append(ctx context.Context, runID string, expectedVersion int, event RunEvent) (int, error) {
	if runID == "" {
		return 0, ErrVersionMismatch
	}
	if event.ID == "" {
		event.ID = "ev-" + uuid.New().String()
	}
	event.RunID = runID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event = copyEvent(event)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.byRun[runID]
	if len(current) != expectedVersion {
		return 0, ErrVersionMismatch
	}
	if len(current) == 0 {
		s.order = append(s.order, runID)
	}
	s.byRun[runID] = append(current, event)
	newVersion := len(s.byRun[runID])
	s.notifyWatchersLocked(runID, event)
	return newVersion, nil
}

func (s *memoryStore) notifyWatchersLocked(runID string, event RunEvent) {
	chans := s.watchers[runID]
	if len(chans) == 0 {
		return
	}
	eventCopy := copyEvent(event)
	var still []chan RunEvent
	for _, ch := range chans {
		select {
		case ch <- eventCopy:
			still = append(still, ch)
		default:
			// 慢消费者：断开而不是阻塞写入端
			close(ch)
		}
	}
	s.watchers[runID] = still
}

func (s *memoryStore) Watch(ctx context.Context, runID string) (<-chan RunEvent, error) {
	s.mu.Lock()
	existing := s.byRun[runID]
	// 缓冲保证重放部分一定放得下，随后的 live 推送走 notifyWatchersLocked
	ch := make(chan RunEvent, len(existing)+watchChanBuffer)
	for i := range existing {
		ch <- copyEvent(existing[i])
	}
	s.watchers[runID] = append(s.watchers[runID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.watchers[runID]
		for i, c := range chans {
			if c == ch {
				s.watchers[runID] = append(chans[:i], chans[i+1:]...)
				if len(s.watchers[runID]) == 0 {
					delete(s.watchers, runID)
				}
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

func (s *memoryStore) ListRunIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func copyEvent(e RunEvent) RunEvent {
	if len(e.Payload) > 0 {
		payload := make([]byte, len(e.Payload))
		copy(payload, e.Payload)
		e.Payload = payload
	}
	return e
}
