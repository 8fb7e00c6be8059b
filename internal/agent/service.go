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
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-platform/internal/agent/events"
	"agent-platform/internal/agent/memory"
	"agent-platform/internal/interp"
	"agent-platform/internal/model/llm"
	"agent-platform/internal/runtime/runstore"
	"agent-platform/internal/tool/registry"
	"agent-platform/pkg/config"
	agenterrors "agent-platform/pkg/errors"
	"agent-platform/pkg/log"
	"agent-platform/pkg/tracing"
)

// RunState 从事件流折叠出的 Run 当前状态
type RunState struct {
	RunID        string    `json:"run_id"`
	Task         string    `json:"task"`
	Status       string    `json:"status"`
	Answer       string    `json:"answer,omitempty"`
	Steps        int       `json:"steps"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Service 管理 Run 的生命周期：创建、后台执行、状态查询、取消。
// 每个 Run 拥有独立的沙箱、记忆与事件流；不同 Run 之间完全隔离。
type Service struct {
	cfg      *config.Config
	client   llm.Client
	registry *registry.Registry
	store    runstore.RunStore
	logger   *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService 创建 Run 服务
func NewService(cfg *config.Config, client llm.Client, reg *registry.Registry,
	store runstore.RunStore, logger *log.Logger) *Service {
	return &Service{
		cfg:      cfg,
		client:   client,
		registry: reg,
		store:    store,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Store 返回底层事件存储（供 API 层重放与订阅）
func (s *Service) Store() runstore.RunStore {
	return s.store
}

// Registry 返回工具注册表（供 API 层列出工具目录）
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// SandboxOptions 按配置构造沙箱参数；extraImports 追加到安全基础白名单之后
func (s *Service) SandboxOptions() interp.Options {
	opts := interp.Options{}
	if s.cfg != nil {
		sc := s.cfg.Sandbox
		if len(sc.AuthorizedImports) > 0 {
			imports := append([]string{}, interp.DefaultAuthorizedImports...)
			imports = append(imports, sc.AuthorizedImports...)
			opts.AuthorizedImports = imports
		}
		opts.MaxLoopIterations = sc.MaxLoopIterations
	}
	return opts
}

// StartRun 创建一个 Run 并在后台执行控制回路，立即返回 run_id。
// Run 的执行不依附请求上下文；取消通过 Cancel 走步边界。
func (s *Service) StartRun(ctx context.Context, task string) (string, error) {
	if task == "" {
		return "", agenterrors.NewAgentError(agenterrors.KindRuntime, "task 不能为空")
	}
	runID := "run-" + uuid.New().String()
	emitter := events.NewEmitter(s.store, runID)
	mem := memory.NewMemory(task)

	persist := true
	var ctrlOpts ControllerOptions
	if s.cfg != nil {
		persist = s.cfg.Sandbox.PersistNamespaceOrDefault()
		ctrlOpts = ControllerOptions{
			MaxSteps:            s.cfg.Agent.MaxSteps,
			ContextWindow:       s.cfg.Agent.ContextWindow,
			AdapterFailureLimit: s.cfg.Agent.AdapterFailureLimit,
		}
	}
	dispatcher := NewDispatcher(s.registry, s.SandboxOptions(), persist)
	ctrl := NewController(s.client, s.registry, dispatcher, mem, emitter, s.logger, ctrlOpts)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
		}()
		spanCtx, span := tracing.StartRunSpan(runCtx, runID)
		defer span.End()
		if _, err := ctrl.Run(spanCtx); err != nil {
			if s.logger != nil {
				s.logger.Warn("run finished with error", "run_id", runID, "error", err)
			}
		}
	}()
	return runID, nil
}

// Cancel 请求取消一个进行中的 Run；生效点在下一个步边界
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// RunState 从事件流折叠出 Run 的当前状态
func (s *Service) RunState(ctx context.Context, runID string) (*RunState, error) {
	evs, version, err := s.store.ListEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, runstore.ErrRunNotFound
	}
	state := &RunState{RunID: runID, Status: string(StatusRunning)}
	for _, ev := range evs {
		state.UpdatedAt = ev.CreatedAt
		switch ev.Type {
		case runstore.RunCreated:
			state.CreatedAt = ev.CreatedAt
			var p events.RunCreatedPayload
			if json.Unmarshal(ev.Payload, &p) == nil {
				state.Task = p.Task
			}
		case runstore.StepStarted:
			var p events.StepStartedPayload
			if json.Unmarshal(ev.Payload, &p) == nil {
				state.Steps = p.Step
			}
		case runstore.RunCompleted:
			var p events.RunCompletedPayload
			if json.Unmarshal(ev.Payload, &p) == nil {
				state.Status = p.Status
				state.Answer = p.Answer
				state.Steps = p.Steps
				state.InputTokens = p.InputTokens
				state.OutputTokens = p.OutputTokens
			}
		case runstore.RunFailed:
			state.Status = string(StatusErrored)
			var p events.RunFailedPayload
			if json.Unmarshal(ev.Payload, &p) == nil {
				state.ErrorKind = p.Kind
				state.ErrorMessage = p.Message
			}
		}
	}
	return state, nil
}
