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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RunTotal, StepDuration, StepErrorTotal,
		ToolDuration, LLMTokensTotal, SandboxEvalDuration,
	)
}

// RunTotal Run 总数（按终态）
var RunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentp_run_total",
		Help: "Run 总数（按终态）",
	},
	[]string{"status"}, // finished | errored | max_steps_exceeded
)

// StepDuration 单步执行耗时（秒）
var StepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agentp_step_duration_seconds",
		Help:    "单步执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"action"}, // code | tool_call | none
)

// StepErrorTotal 步级错误总数（按错误类别）
var StepErrorTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentp_step_error_total",
		Help: "步级错误总数（按错误类别）",
	},
	[]string{"kind"},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agentp_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// LLMTokensTotal 模型调用 token 数（含失败步上报的计数）
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentp_llm_tokens_total",
		Help: "模型调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// SandboxEvalDuration 沙箱求值耗时（秒）
var SandboxEvalDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "agentp_sandbox_eval_duration_seconds",
		Help:    "沙箱求值耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
