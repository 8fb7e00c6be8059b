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

package runstore

import (
	"context"
	"errors"
	"fmt"

	"agent-platform/pkg/config"
)

var (
	// ErrVersionMismatch Append 时当前 version 与 expectedVersion 不一致
	ErrVersionMismatch = errors.New("runstore: version mismatch on append")
	// ErrRunNotFound 指定 Run 尚无任何事件
	ErrRunNotFound = errors.New("runstore: run not found")
)

// RunStore Run 事件存储：版本化追加 + 重放 + Watch
type RunStore interface {
	// ListEvents 返回该 run 的完整事件列表（按序）及当前 version（事件条数；0 表示尚无事件）
	ListEvents(ctx context.Context, runID string) ([]RunEvent, int, error)
	// Append 仅当 expectedVersion 等于当前 version 时追加，返回 newVersion；否则返回 ErrVersionMismatch
	Append(ctx context.Context, runID string, expectedVersion int, event RunEvent) (newVersion int, err error)
	// Watch 订阅该 run 的事件流：先按序重放已有事件，随后推送每次成功 Append 的新事件。
	// 订阅是观测性的：消费过慢的订阅者会被断开（channel 关闭），绝不反压 Append。
	Watch(ctx context.Context, runID string) (<-chan RunEvent, error)
	// ListRunIDs 返回已知的 run_id 列表（按创建先后）
	ListRunIDs(ctx context.Context) ([]string, error)
}

// New 按配置创建 RunStore（memory | postgres）
func New(ctx context.Context, cfg config.RunStoreConfig) (RunStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("runstore: postgres 需要配置 dsn")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("runstore: 未知类型 %q", cfg.Type)
	}
}
