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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/model/llm"
	agenterrors "agent-platform/pkg/errors"
)

func TestParseAction_NativeToolCall(t *testing.T) {
	reply := &llm.Reply{
		ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "http.request", Args: map[string]any{"method": "GET", "url": "https://example.com"}},
		},
	}
	action, err := ParseAction(reply)
	require.NoError(t, err)
	tc, ok := action.(ToolCallAction)
	require.True(t, ok)
	assert.Equal(t, "http.request", tc.Name)
	assert.Equal(t, "GET", tc.Args["method"])
	assert.Equal(t, "tool_call", tc.Label())
}

func TestParseAction_FinalAnswerSentinel(t *testing.T) {
	reply := &llm.Reply{
		ToolCalls: []llm.ToolCall{
			{Name: FinalAnswerToolName, Args: map[string]any{"answer": "42"}},
		},
	}
	action, err := ParseAction(reply)
	require.NoError(t, err)
	fa, ok := action.(FinalAnswerAction)
	require.True(t, ok)
	assert.Equal(t, "42", fa.Answer)
}

func TestParseAction_FencedCode(t *testing.T) {
	for _, content := range []string{
		"思考一下。\n```py\nprint(1 + 1)\n```",
		"```python\nprint(1 + 1)\n```\n后面的解释。",
		"```\nprint(1 + 1)\n```",
	} {
		action, err := ParseAction(&llm.Reply{Content: content})
		require.NoError(t, err, content)
		ca, ok := action.(CodeAction)
		require.True(t, ok, content)
		assert.Equal(t, "print(1 + 1)", ca.Code)
	}
}

func TestParseAction_PlainTextIsParseError(t *testing.T) {
	_, err := ParseAction(&llm.Reply{Content: "答案大概是 42。"})
	require.Error(t, err)
	assert.Equal(t, agenterrors.KindParse, agenterrors.KindOf(err))

	_, err = ParseAction(nil)
	require.Error(t, err)
	assert.Equal(t, agenterrors.KindParse, agenterrors.KindOf(err))
}

func TestParseAction_ToolCallTakesPrecedenceOverCode(t *testing.T) {
	reply := &llm.Reply{
		Content:   "```py\nprint(1)\n```",
		ToolCalls: []llm.ToolCall{{Name: "calc.eval", Args: map[string]any{"expression": "1+1"}}},
	}
	action, err := ParseAction(reply)
	require.NoError(t, err)
	_, ok := action.(ToolCallAction)
	assert.True(t, ok)
}
