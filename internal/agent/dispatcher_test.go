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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/interp"
	"agent-platform/internal/tool"
	"agent-platform/internal/tool/registry"
	agenterrors "agent-platform/pkg/errors"
)

func newEchoRegistry(t *testing.T, invoked *int) *registry.Registry {
	t.Helper()
	reg := registry.New()
	echo, err := tool.New(tool.Definition{
		Name:        "echo",
		Description: "原样返回输入文本",
		Inputs: map[string]tool.Input{
			"text": {Type: tool.TypeString, Description: "要回显的文本"},
		},
		OutputType: tool.TypeString,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		if invoked != nil {
			*invoked++
		}
		return "echo: " + args["text"].(string), nil
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(echo))
	return reg
}

func TestDispatcher_CodeActionReport(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	obs, err := d.Dispatch(context.Background(), CodeAction{Code: "(2 / 2) * 4"})
	require.NoError(t, err)
	assert.Equal(t, "Stdout:\n\nOutput: 4.0", obs.Text)
	assert.False(t, obs.IsFinal)
}

func TestDispatcher_CodeActionFinalAnswer(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	obs, err := d.Dispatch(context.Background(), CodeAction{Code: "final_answer(21 * 2)"})
	require.NoError(t, err)
	assert.True(t, obs.IsFinal)
	assert.Equal(t, int64(42), obs.FinalAnswer)
}

func TestDispatcher_NamespacePersistsAcrossSteps(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	_, err := d.Dispatch(context.Background(), CodeAction{Code: "x = 41"})
	require.NoError(t, err)
	obs, err := d.Dispatch(context.Background(), CodeAction{Code: "x + 1"})
	require.NoError(t, err)
	assert.Equal(t, "Stdout:\n\nOutput: 42", obs.Text)
}

func TestDispatcher_NamespaceResetWhenNotPersisted(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, false)
	_, err := d.Dispatch(context.Background(), CodeAction{Code: "x = 41"})
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), CodeAction{Code: "x + 1"})
	require.Error(t, err)
}

func TestDispatcher_CodeErrorKeepsStdout(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	obs, err := d.Dispatch(context.Background(), CodeAction{Code: "print('before')\n1 / 0"})
	require.Error(t, err)
	assert.Contains(t, obs.Text, "before")
}

func TestDispatcher_ToolCall(t *testing.T) {
	invoked := 0
	reg := newEchoRegistry(t, &invoked)
	d := NewDispatcher(reg, interp.Options{}, true)

	obs, err := d.Dispatch(context.Background(), ToolCallAction{
		Name: "echo",
		Args: map[string]any{"text": "你好"},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: 你好", obs.Text)
	assert.Equal(t, 1, invoked)
}

func TestDispatcher_ToolCallUnknownTool(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	_, err := d.Dispatch(context.Background(), ToolCallAction{Name: "nope", Args: nil})
	require.Error(t, err)
	assert.Equal(t, agenterrors.KindToolArgument, agenterrors.KindOf(err))
}

func TestDispatcher_ToolCallValidatesBeforeInvoke(t *testing.T) {
	invoked := 0
	reg := newEchoRegistry(t, &invoked)
	d := NewDispatcher(reg, interp.Options{}, true)

	// 缺少必填参数
	_, err := d.Dispatch(context.Background(), ToolCallAction{Name: "echo", Args: map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, agenterrors.KindToolArgument, agenterrors.KindOf(err))

	// 未声明的参数名
	_, err = d.Dispatch(context.Background(), ToolCallAction{
		Name: "echo",
		Args: map[string]any{"text": "x", "bogus": 1},
	})
	require.Error(t, err)
	assert.Equal(t, agenterrors.KindToolArgument, agenterrors.KindOf(err))

	assert.Equal(t, 0, invoked, "校验失败不应触发工具执行")
}

func TestDispatcher_ToolExposedInSandbox(t *testing.T) {
	reg := newEchoRegistry(t, nil)
	d := NewDispatcher(reg, interp.Options{}, true)

	obs, err := d.Dispatch(context.Background(), CodeAction{Code: "echo(text='沙箱')"})
	require.NoError(t, err)
	assert.Equal(t, "Stdout:\n\nOutput: echo: 沙箱", obs.Text)

	// 单输入工具允许位置参数
	obs, err = d.Dispatch(context.Background(), CodeAction{Code: "echo('位置')"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(obs.Text, "echo: 位置"))
}

func TestDispatcher_FinalAnswerAction(t *testing.T) {
	d := NewDispatcher(registry.New(), interp.Options{}, true)
	obs, err := d.Dispatch(context.Background(), FinalAnswerAction{Answer: "done"})
	require.NoError(t, err)
	assert.True(t, obs.IsFinal)
	assert.Equal(t, "done", obs.Text)
}
