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

import "agent-platform/pkg/metrics"

// Monitor 把步级记录上报到 Prometheus 指标
type Monitor struct{}

// ObserveStep 上报单步耗时、token 用量与错误计数
func (Monitor) ObserveStep(rec StepRecord) {
	action := rec.ActionType
	if action == "" {
		action = "none"
	}
	metrics.StepDuration.WithLabelValues(action).Observe(rec.Duration.Seconds())
	if rec.InputTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(rec.InputTokens))
	}
	if rec.OutputTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(rec.OutputTokens))
	}
	if rec.ErrorKind != "" {
		metrics.StepErrorTotal.WithLabelValues(rec.ErrorKind).Inc()
	}
}
