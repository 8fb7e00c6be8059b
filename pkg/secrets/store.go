// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"fmt"
)

// Store Secret 存储接口；模型 API Key 等凭据统一经由此处解析
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string            `yaml:"provider"` // vault | env | memory
	Options  map[string]string `yaml:"options"`  // Provider 相关配置
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    config.Options["address"],
			Token:      config.Options["token"],
			PathPrefix: config.Options["path_prefix"],
		})
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", config.Provider)
	}
}

// ResolveAPIKey 按 provider 名查模型 API Key：先查 Store，查不到回落原值
func ResolveAPIKey(ctx context.Context, store Store, provider, configured string) string {
	if store == nil {
		return configured
	}
	if v, err := store.Get(ctx, "model/"+provider+"/api_key"); err == nil && v != "" {
		return v
	}
	return configured
}
