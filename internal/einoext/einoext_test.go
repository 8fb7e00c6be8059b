package einoext

import (
	"context"
	stderrors "errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/model/llm"
	"agent-platform/pkg/config"
	"agent-platform/pkg/errors"
)

// fakeChatModel 记录入参并返回预置回复
type fakeChatModel struct {
	reply     *schema.Message
	err       error
	gotTools  []*schema.ToolInfo
	gotInput  []*schema.Message
	withTools bool
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.gotInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, stderrors.New("stream 未实现")
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.gotTools = tools
	f.withTools = true
	return f, nil
}

func TestChatModelClient_MapsReplyAndUsage(t *testing.T) {
	fake := &fakeChatModel{
		reply: &schema.Message{
			Role:    schema.Assistant,
			Content: "看一下计算结果",
			ToolCalls: []schema.ToolCall{
				{
					ID: "call-1",
					Function: schema.FunctionCall{
						Name:      "calc.eval",
						Arguments: `{"expression":"1+1"}`,
					},
				},
			},
			ResponseMeta: &schema.ResponseMeta{
				Usage: &schema.TokenUsage{PromptTokens: 120, CompletionTokens: 18},
			},
		},
	}
	client := NewChatModelClient(fake, "openai", "gpt-4o-mini")
	assert.Equal(t, "openai", client.Provider())
	assert.Equal(t, "gpt-4o-mini", client.Model())

	reply, err := client.ChatWithTools(context.Background(),
		[]llm.Message{{Role: "user", Content: "1+1 等于几"}},
		[]llm.ToolSchema{{
			Name:        "calc.eval",
			Description: "计算表达式",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{"type": "string", "description": "表达式"},
				},
				"required": []string{"expression"},
			},
		}},
		llm.GenerateOptions{})
	require.NoError(t, err)

	assert.True(t, fake.withTools)
	require.Len(t, fake.gotTools, 1)
	assert.Equal(t, "calc.eval", fake.gotTools[0].Name)
	require.Len(t, fake.gotInput, 1)
	assert.Equal(t, schema.RoleType("user"), fake.gotInput[0].Role)

	assert.Equal(t, "看一下计算结果", reply.Content)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call-1", reply.ToolCalls[0].ID)
	assert.Equal(t, "calc.eval", reply.ToolCalls[0].Name)
	assert.Equal(t, "1+1", reply.ToolCalls[0].Args["expression"])
	assert.Equal(t, 120, reply.Usage.InputTokens)
	assert.Equal(t, 18, reply.Usage.OutputTokens)
	assert.Equal(t, 120, client.LastTokenUsage().InputTokens)
}

func TestChatModelClient_BadToolCallArgs(t *testing.T) {
	fake := &fakeChatModel{
		reply: &schema.Message{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{ID: "call-1", Function: schema.FunctionCall{Name: "calc.eval", Arguments: "不是 JSON"}},
			},
		},
	}
	client := NewChatModelClient(fake, "openai", "gpt-4o-mini")
	_, err := client.ChatWithTools(context.Background(),
		[]llm.Message{{Role: "user", Content: "hi"}}, nil, llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindModelAdapter, errors.KindOf(err))
}

func TestChatModelClient_GenerateError(t *testing.T) {
	fake := &fakeChatModel{err: stderrors.New("provider 超时")}
	client := NewChatModelClient(fake, "openai", "gpt-4o-mini")
	_, err := client.ChatWithTools(context.Background(),
		[]llm.Message{{Role: "user", Content: "hi"}}, nil, llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindModelAdapter, errors.KindOf(err))
}

// fakeInvokable 回显收到的 JSON 参数
type fakeInvokable struct {
	fail bool
}

func (f *fakeInvokable) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "echo", Desc: "回显入参"}, nil
}

func (f *fakeInvokable) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	if f.fail {
		return "", stderrors.New("下游失败")
	}
	return "echo:" + argumentsInJSON, nil
}

func TestWrapInvokable(t *testing.T) {
	wrapped, err := WrapInvokable(context.Background(), &fakeInvokable{})
	require.NoError(t, err)
	assert.Equal(t, "echo", wrapped.Definition().Name)

	out, err := wrapped.Invoke(context.Background(), map[string]any{
		"input": map[string]any{"text": "你好"},
	})
	require.NoError(t, err)
	assert.Equal(t, `echo:{"text":"你好"}`, out)
}

func TestWrapInvokable_ExecutionError(t *testing.T) {
	wrapped, err := WrapInvokable(context.Background(), &fakeInvokable{fail: true})
	require.NoError(t, err)

	_, err = wrapped.Invoke(context.Background(), map[string]any{"input": map[string]any{}})
	require.Error(t, err)
	assert.Equal(t, errors.KindToolExecution, errors.KindOf(err))
}

func TestNewDefaultClient_BadDefaultKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Model.Default = "没有点号"
	_, err := NewDefaultClient(context.Background(), cfg)
	require.Error(t, err)
}
