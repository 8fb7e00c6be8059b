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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Model      ModelConfig      `mapstructure:"model"`
	RunStore   RunStoreConfig   `mapstructure:"runstore"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// AgentConfig Controller 步数预算与上下文窗口配置
type AgentConfig struct {
	MaxSteps            int `mapstructure:"max_steps"`             // 单次 Run 最大步数，<=0 默认 10
	ContextWindow       int `mapstructure:"context_window"`        // 构建模型上下文时取最近 N 条 Step Record，<=0 默认 20
	AdapterFailureLimit int `mapstructure:"adapter_failure_limit"` // 模型适配器连续失败上限，达到后 Run 置为 ERRORED，<=0 默认 3
}

// SandboxConfig 沙箱解释器配置
type SandboxConfig struct {
	AuthorizedImports []string `mapstructure:"authorized_imports"`  // 安全基础模块之外额外放行的 import
	PersistNamespace  *bool    `mapstructure:"persist_namespace"`   // 步间保留命名空间；未配置时默认 true
	MaxLoopIterations int      `mapstructure:"max_loop_iterations"` // 循环迭代上限，<=0 默认 10000
}

// RunStoreConfig Run 事件存储配置（事件流）
type RunStoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// SecretsConfig Secret Store 配置
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Options  map[string]string `mapstructure:"options"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth         bool   `mapstructure:"auth"`
	AuthToken    string `mapstructure:"auth_token"`
	RateLimit    bool   `mapstructure:"rate_limit"`
	RateLimitRPS int    `mapstructure:"rate_limit_rps"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Default   string                    `mapstructure:"default"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// RateLimitsConfig 限流配置（LLM Provider 级）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// PersistNamespaceOrDefault 步间命名空间保留开关，未配置时默认 true
func (c SandboxConfig) PersistNamespaceOrDefault() bool {
	if c.PersistNamespace == nil {
		return true
	}
	return *c.PersistNamespace
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml，并合并 configs/model.yaml 的 model 段）
func LoadAPIConfig() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	if modelCfg, errModel := LoadConfig("configs/model.yaml"); errModel == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}

// replaceEnvVars 将 "${VAR}" 形式的 API Key 替换为环境变量值
func replaceEnvVars(config *Config) {
	for provider, providerConfig := range config.Model.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.Providers[provider] = providerConfig
			}
		}
	}
}
