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

package app

import (
	"context"
	"fmt"

	"agent-platform/internal/runtime/runstore"
	"agent-platform/pkg/config"
	"agent-platform/pkg/log"
	"agent-platform/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	Secrets  secrets.Store
	RunStore runstore.RunStore
}

// NewBootstrap 根据配置创建 Bootstrap（日志 / Secret Store / Run 事件存储）。
// 模型 API Key 先经 Secret Store 解析，解析结果直接回写进 cfg.Model.Providers，
// 后续 einoext 工厂读到的就是最终凭据。
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var secretStore secrets.Store
	if cfg != nil {
		secretStore, err = secrets.NewStore(secrets.Config{
			Provider: cfg.Secrets.Provider,
			Options:  cfg.Secrets.Options,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 secret store 失败: %w", err)
		}
		resolveProviderKeys(ctx, secretStore, cfg)
	}

	var store runstore.RunStore
	if cfg != nil {
		store, err = runstore.New(ctx, cfg.RunStore)
		if err != nil {
			return nil, fmt.Errorf("初始化 run 事件存储失败: %w", err)
		}
	}

	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		Secrets:  secretStore,
		RunStore: store,
	}, nil
}

// resolveProviderKeys 逐 provider 解析 API Key，查不到时保留配置里的原值
func resolveProviderKeys(ctx context.Context, store secrets.Store, cfg *config.Config) {
	for name, pc := range cfg.Model.Providers {
		pc.APIKey = secrets.ResolveAPIKey(ctx, store, name, pc.APIKey)
		cfg.Model.Providers[name] = pc
	}
}
