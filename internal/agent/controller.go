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

// Package agent 实现有界的智能体控制回路：
// 构建上下文 → 调用模型 → 解析动作 → 分发执行 → 记录 → 检查终止条件。
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agent-platform/internal/agent/events"
	"agent-platform/internal/agent/memory"
	"agent-platform/internal/model/llm"
	"agent-platform/internal/tool/registry"
	agenterrors "agent-platform/pkg/errors"
	"agent-platform/pkg/log"
	"agent-platform/pkg/metrics"
	"agent-platform/pkg/tracing"
)

// Status Run 的状态机取值
type Status string

const (
	StatusInit     Status = "INIT"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusErrored  Status = "ERRORED"
	StatusMaxSteps Status = "MAX_STEPS_EXCEEDED"
)

const (
	defaultMaxSteps            = 10
	defaultContextWindow       = 20
	defaultAdapterFailureLimit = 3
)

// ControllerOptions 控制回路参数；零值使用默认
type ControllerOptions struct {
	MaxSteps            int     // 步数预算 N：最多 N 次模型调用
	ContextWindow       int     // 构建上下文时取最近 N 条步级记录
	AdapterFailureLimit int     // 连续适配器失败上限，达到后 Run 置为 ERRORED
	Temperature         float64 // 透传给模型
	MaxTokens           int     // 透传给模型
	ModelCallTimeout    time.Duration
}

func (o ControllerOptions) withDefaults() ControllerOptions {
	if o.MaxSteps <= 0 {
		o.MaxSteps = defaultMaxSteps
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = defaultContextWindow
	}
	if o.AdapterFailureLimit <= 0 {
		o.AdapterFailureLimit = defaultAdapterFailureLimit
	}
	return o
}

// RunResult 控制回路的最终产出
type RunResult struct {
	Status       Status
	Answer       string
	Steps        int
	InputTokens  int
	OutputTokens int
}

// Controller 单次 Run 的控制回路；一个 Controller 只跑一次 Run
type Controller struct {
	client     llm.Client
	registry   *registry.Registry
	dispatcher *Dispatcher
	memory     *memory.Memory
	monitor    memory.Monitor
	emitter    *events.Emitter
	logger     *log.Logger
	opts       ControllerOptions
}

// NewController 创建控制回路。registry 显式传入；emitter、logger 可为 nil。
func NewController(client llm.Client, reg *registry.Registry, dispatcher *Dispatcher,
	mem *memory.Memory, emitter *events.Emitter, logger *log.Logger, opts ControllerOptions) *Controller {
	return &Controller{
		client:     client,
		registry:   reg,
		dispatcher: dispatcher,
		memory:     mem,
		emitter:    emitter,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

// Run 执行控制回路直到终态。预算 N 步最多发起 N 次模型调用；
// 步数耗尽时从记忆合成 best-effort 答案，不再额外调用模型。
func (c *Controller) Run(ctx context.Context) (*RunResult, error) {
	task := c.memory.Task()
	c.emitEvent(func(e *events.Emitter) error { return e.RunCreated(ctx, task) })

	schemas := toolSchemas(c.registry)
	genOpts := llm.GenerateOptions{Temperature: c.opts.Temperature, MaxTokens: c.opts.MaxTokens}
	adapterFailures := 0

	for step := 1; step <= c.opts.MaxSteps; step++ {
		// 协作式取消只发生在步边界
		if err := ctx.Err(); err != nil {
			return c.fail(ctx, agenterrors.KindRuntime, fmt.Sprintf("run 被取消: %v", err))
		}
		res, err := c.runStep(ctx, step, schemas, genOpts, &adapterFailures)
		if res != nil || err != nil {
			return res, err
		}
	}

	// 预算被连续适配器失败耗尽（最后一步也是失败）：属于 ERRORED，不是步数超限
	if adapterFailures > 0 {
		return c.fail(ctx, agenterrors.KindModelAdapter,
			fmt.Sprintf("步数预算被模型适配器失败耗尽（连续 %d 次失败）", adapterFailures))
	}

	// 预算耗尽：从记忆合成 best-effort 答案，不再调用模型
	return c.complete(ctx, StatusMaxSteps, c.bestEffortAnswer())
}

// runStep 执行一步；返回 (nil, nil) 表示该步已消耗但 run 未到终态
func (c *Controller) runStep(ctx context.Context, step int, schemas []llm.ToolSchema,
	genOpts llm.GenerateOptions, adapterFailures *int) (*RunResult, error) {
	ctx, span := tracing.StartStepSpan(ctx, c.traceRunID(), step)
	defer span.End()

	c.emitEvent(func(e *events.Emitter) error { return e.StepStarted(ctx, step) })

	messages := buildMessages(c.memory, c.registry, c.opts.ContextWindow)
	start := time.Now()
	reply, err := c.chat(ctx, messages, schemas, genOpts)
	if err != nil {
		*adapterFailures++
		rec := memory.StepRecord{
			Index:        step,
			ActionType:   "none",
			ErrorKind:    string(agenterrors.KindOf(err)),
			ErrorMessage: err.Error(),
			Duration:     time.Since(start),
		}
		c.record(ctx, rec)
		c.logWarn("model adapter error", "step", step, "error", err)
		if *adapterFailures >= c.opts.AdapterFailureLimit {
			return c.fail(ctx, agenterrors.KindModelAdapter,
				fmt.Sprintf("连续 %d 次模型适配器失败，最后一次: %v", *adapterFailures, err))
		}
		return nil, nil
	}
	*adapterFailures = 0
	usage := reply.Usage
	c.emitEvent(func(e *events.Emitter) error {
		return e.ModelResponse(ctx, events.ModelResponsePayload{
			Step:         step,
			Content:      reply.Content,
			ToolCalls:    len(reply.ToolCalls),
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		})
	})

	action, err := ParseAction(reply)
	if err != nil {
		// 不可解析：作为纠偏上下文回灌，消耗一步
		rec := memory.StepRecord{
			Index:        step,
			ModelReply:   reply.Content,
			ActionType:   "none",
			ErrorKind:    string(agenterrors.KindOf(err)),
			ErrorMessage: err.Error(),
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			Duration:     time.Since(start),
		}
		c.record(ctx, rec)
		return nil, nil
	}

	obs, derr := c.dispatcher.Dispatch(ctx, action)
	rec := memory.StepRecord{
		Index:        step,
		ModelReply:   reply.Content,
		ActionType:   action.Label(),
		ActionDetail: actionDetail(action),
		Observation:  obs.Text,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Duration:     time.Since(start),
	}
	if derr != nil {
		rec.ErrorKind = string(agenterrors.KindOf(derr))
		rec.ErrorMessage = derr.Error()
	}
	c.record(ctx, rec)

	if derr == nil && obs.IsFinal {
		answer := obs.Text
		c.emitEvent(func(e *events.Emitter) error { return e.FinalAnswer(ctx, answer) })
		return c.complete(ctx, StatusFinished, answer)
	}
	return nil, nil
}

// traceRunID span 属性用的 run 标识，无 emitter 时为空
func (c *Controller) traceRunID() string {
	if c.emitter == nil {
		return ""
	}
	return c.emitter.RunID()
}

// chat 带单次调用超时的模型调用
func (c *Controller) chat(ctx context.Context, messages []llm.Message, schemas []llm.ToolSchema, opts llm.GenerateOptions) (*llm.Reply, error) {
	if c.opts.ModelCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ModelCallTimeout)
		defer cancel()
	}
	return c.client.ChatWithTools(ctx, messages, schemas, opts)
}

func (c *Controller) record(ctx context.Context, rec memory.StepRecord) {
	c.memory.Append(rec)
	c.monitor.ObserveStep(rec)
	c.emitEvent(func(e *events.Emitter) error {
		return e.ActionExecuted(ctx, events.ActionExecutedPayload{
			Step:         rec.Index,
			Action:       rec.ActionType,
			Observation:  rec.Observation,
			ErrorKind:    rec.ErrorKind,
			ErrorMessage: rec.ErrorMessage,
		})
	})
}

func (c *Controller) complete(ctx context.Context, status Status, answer string) (*RunResult, error) {
	in, out := c.memory.TokenTotals()
	res := &RunResult{
		Status:       status,
		Answer:       answer,
		Steps:        c.memory.Len(),
		InputTokens:  in,
		OutputTokens: out,
	}
	metrics.RunTotal.WithLabelValues(strings.ToLower(string(status))).Inc()
	c.emitEvent(func(e *events.Emitter) error {
		return e.RunCompleted(ctx, events.RunCompletedPayload{
			Status:       string(status),
			Answer:       answer,
			Steps:        res.Steps,
			InputTokens:  in,
			OutputTokens: out,
		})
	})
	return res, nil
}

func (c *Controller) fail(ctx context.Context, kind agenterrors.Kind, message string) (*RunResult, error) {
	in, out := c.memory.TokenTotals()
	res := &RunResult{
		Status:       StatusErrored,
		Steps:        c.memory.Len(),
		InputTokens:  in,
		OutputTokens: out,
	}
	metrics.RunTotal.WithLabelValues(strings.ToLower(string(StatusErrored))).Inc()
	c.emitEvent(func(e *events.Emitter) error { return e.RunFailed(ctx, string(kind), message) })
	return res, agenterrors.NewAgentError(kind, message)
}

// bestEffortAnswer 步数耗尽时的合成答案：取最近一条无错误步的观察，
// 退而取最近一条模型回复
func (c *Controller) bestEffortAnswer() string {
	records := c.memory.Records()
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ErrorKind == "" && records[i].Observation != "" {
			return fmt.Sprintf("未在步数预算内得到最终答案。最近一次观察：\n%s", records[i].Observation)
		}
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ModelReply != "" {
			return fmt.Sprintf("未在步数预算内得到最终答案。最近一次模型回复：\n%s", records[i].ModelReply)
		}
	}
	return "未在步数预算内得到最终答案。"
}

func (c *Controller) emitEvent(fn func(*events.Emitter) error) {
	if c.emitter == nil {
		return
	}
	if err := fn(c.emitter); err != nil {
		c.logWarn("emit run event failed", "run_id", c.emitter.RunID(), "error", err)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func actionDetail(a Action) string {
	switch act := a.(type) {
	case CodeAction:
		return act.Code
	case ToolCallAction:
		args, _ := json.Marshal(act.Args)
		return fmt.Sprintf("%s(%s)", act.Name, args)
	case FinalAnswerAction:
		return "final_answer"
	default:
		return ""
	}
}
