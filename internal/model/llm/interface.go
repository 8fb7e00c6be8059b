package llm

import (
	"context"
)

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant, tool
	Content string `json:"content"`
	// ToolCallID tool 角色消息回填的调用 ID
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolSchema 供 function-calling 使用的工具描述
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall 模型发起的原生工具调用
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// TokenUsage 单次调用的 token 用量
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Reply 模型的一次完整回复：文本与可选的原生工具调用
type Reply struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client LLM 客户端接口。
// LastTokenUsage 返回最近一次成功调用的用量，调用失败时保持上一次的值。
type Client interface {
	// ChatWithTools 携带工具目录的聊天；tools 为空时退化为普通聊天
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolSchema, options GenerateOptions) (*Reply, error)
	// LastTokenUsage 最近一次调用的 token 用量
	LastTokenUsage() TokenUsage
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "claude":
		return NewClaudeClient(model, apiKey)
	default:
		// openai、qwen 以及其余 OpenAI 兼容提供商
		return NewOpenAIClientWithBaseURL(provider, model, apiKey, baseURL)
	}
}
