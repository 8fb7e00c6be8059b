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

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"agent-platform/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("agent-platform cli 0.1.0")
	case "health":
		fmt.Println("ok")
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: agentp server start\n")
			os.Exit(1)
		}
	case "run":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentp run <task>\n")
			os.Exit(1)
		}
		runTask(strings.Join(args, " "))
	case "runs":
		runList()
	case "state":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentp state <run_id>\n")
			os.Exit(1)
		}
		runState(args[0])
	case "events":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentp events <run_id>\n")
			os.Exit(1)
		}
		runEvents(args[0])
	case "cancel":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentp cancel <run_id>\n")
			os.Exit(1)
		}
		runCancel(args[0])
	case "eval":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentp eval <code>\n")
			os.Exit(1)
		}
		runEval(strings.Join(args, " "))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: agentp <command> [args]")
	fmt.Println("  version          - 显示版本")
	fmt.Println("  health           - 健康检查")
	fmt.Println("  config           - 显示配置概要")
	fmt.Println("  server start     - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  run <task>       - 提交任务并轮询到终态，打印最终答案")
	fmt.Println("  runs             - 列出已知 Run")
	fmt.Println("  state <run_id>   - 查询 Run 状态")
	fmt.Println("  events <run_id>  - 输出 Run 事件时间线")
	fmt.Println("  cancel <run_id>  - 请求取消执行中的 Run")
	fmt.Println("  eval <code>      - 在沙箱中执行一段代码并打印报告")
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg != nil {
		fmt.Printf("api.port=%d\n", cfg.API.Port)
		fmt.Printf("api.host=%s\n", cfg.API.Host)
		fmt.Printf("agent.max_steps=%d\n", cfg.Agent.MaxSteps)
		fmt.Printf("model.default=%s\n", cfg.Model.Default)
	}
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

// isTerminalStatus Run 终态判断（与 API 状态机一致）
func isTerminalStatus(status string) bool {
	switch status {
	case "FINISHED", "ERRORED", "MAX_STEPS_EXCEEDED":
		return true
	}
	return false
}

func runTask(task string) {
	runID, err := createRun(task)
	if err != nil {
		fmt.Fprintf(os.Stderr, "提交任务失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Run: %s (轮询状态中...)\n", runID)
	for i := 0; i < 120; i++ {
		time.Sleep(1 * time.Second)
		state, err := getRun(runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
			os.Exit(1)
		}
		status, _ := state["status"].(string)
		fmt.Printf("  status: %s\n", status)
		if isTerminalStatus(status) {
			if events, err := listRunEvents(runID); err == nil {
				for i, ev := range events {
					fmt.Println(formatEventLine(i+1, ev))
				}
			}
			if answer, ok := state["answer"].(string); ok && answer != "" {
				fmt.Println(answer)
			}
			if status == "ERRORED" {
				fmt.Fprintf(os.Stderr, "错误: %v (%v)\n", state["error_message"], state["error_kind"])
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "等待超时，可用 agentp state %s 继续查询\n", runID)
	os.Exit(1)
}

func runList() {
	ids, err := listRuns()
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出 Runs 失败: %v\n", err)
		os.Exit(1)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func runState(runID string) {
	state, err := getRun(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("run_id=%v status=%v steps=%v\n", state["run_id"], state["status"], state["steps"])
	if answer, ok := state["answer"].(string); ok && answer != "" {
		fmt.Printf("answer=%s\n", answer)
	}
}

func runEvents(runID string) {
	events, err := listRunEvents(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询事件失败: %v\n", err)
		os.Exit(1)
	}
	for i, ev := range events {
		fmt.Println(formatEventLine(i+1, ev))
	}
}

func runCancel(runID string) {
	if err := cancelRun(runID); err != nil {
		fmt.Fprintf(os.Stderr, "取消失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("cancelling")
}

func runEval(code string) {
	out, err := evalCode(code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
	if report, ok := out["report"].(string); ok {
		fmt.Println(report)
	}
}

// formatEventLine 将单条 Run 事件渲染为时间线一行，payload 截断到 120 字符
func formatEventLine(index int, ev map[string]interface{}) string {
	evType, _ := ev["type"].(string)
	createdAt, _ := ev["created_at"].(string)
	payload := ""
	if raw, ok := ev["payload"]; ok && raw != nil {
		payload = fmt.Sprintf("%v", raw)
		if len(payload) > 120 {
			payload = payload[:120] + "..."
		}
	}
	return fmt.Sprintf("%3d  %-25s %s  %s", index, evType, createdAt, payload)
}
