package main

import (
	"strings"
	"testing"
)

func TestIsTerminalStatus(t *testing.T) {
	for _, status := range []string{"FINISHED", "ERRORED", "MAX_STEPS_EXCEEDED"} {
		if !isTerminalStatus(status) {
			t.Errorf("%s 应为终态", status)
		}
	}
	for _, status := range []string{"INIT", "RUNNING", ""} {
		if isTerminalStatus(status) {
			t.Errorf("%s 不应为终态", status)
		}
	}
}

func TestFormatEventLine(t *testing.T) {
	line := formatEventLine(3, map[string]interface{}{
		"type":       "step_started",
		"created_at": "2026-01-02T15:04:05.000Z",
		"payload":    map[string]interface{}{"step": 1},
	})
	if !strings.Contains(line, "step_started") {
		t.Errorf("缺少事件类型: %s", line)
	}
	if !strings.Contains(line, "2026-01-02T15:04:05.000Z") {
		t.Errorf("缺少时间戳: %s", line)
	}
	if !strings.HasPrefix(line, "  3") {
		t.Errorf("序号格式不对: %s", line)
	}
}

func TestFormatEventLine_TruncatesLongPayload(t *testing.T) {
	line := formatEventLine(1, map[string]interface{}{
		"type":    "model_response_received",
		"payload": strings.Repeat("a", 500),
	})
	if !strings.HasSuffix(line, "...") {
		t.Errorf("超长 payload 应截断: %s", line)
	}
}
