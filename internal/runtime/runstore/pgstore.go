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
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const watchPollInterval = 500 * time.Millisecond

const schemaDDL = `
CREATE TABLE IF NOT EXISTS run_events (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT        NOT NULL,
	version    INT         NOT NULL,
	type       TEXT        NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, version)
);
CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events (run_id, version);
`

// pgStore PostgreSQL 实现：run_events 事件表，(run_id, version) 唯一约束做 CAS
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建基于 PostgreSQL 的 RunStore；dsn 为连接串
func NewPostgresStore(ctx context.Context, dsn string) (RunStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

// Close 关闭连接池（用于优雅退出）
func (s *pgStore) Close() {
	s.pool.Close()
}

func (s *pgStore) ListEvents(ctx context.Context, runID string) ([]RunEvent, int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, type, payload, created_at FROM run_events WHERE run_id = $1 ORDER BY version`,
		runID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var id int64
		var typeStr string
		var payload []byte
		if err := rows.Scan(&id, &e.RunID, &typeStr, &payload, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.ID = strconv.FormatInt(id, 10)
		e.Type = EventType(typeStr)
		if len(payload) > 0 {
			e.Payload = make([]byte, len(payload))
			copy(e.Payload, payload)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, len(events), nil
}

func (s *pgStore) Append(ctx context.Context, runID string, expectedVersion int, event RunEvent) (int, error) {
	if runID == "" {
		return 0, ErrVersionMismatch
	}
	newVersion := expectedVersion + 1
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	payload := event.Payload
	if payload == nil {
		payload = []byte("null")
	}

	// CAS：仅当当前 max(version) = expectedVersion 时插入
	var currentMax *int
	err := s.pool.QueryRow(ctx, `SELECT MAX(version) FROM run_events WHERE run_id = $1`, runID).Scan(&currentMax)
	if err != nil {
		return 0, err
	}
	cur := 0
	if currentMax != nil {
		cur = *currentMax
	}
	if cur != expectedVersion {
		return 0, ErrVersionMismatch
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_events (run_id, version, type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		runID, newVersion, string(event.Type), payload, event.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrVersionMismatch
		}
		return 0, err
	}
	return newVersion, nil
}

func (s *pgStore) Watch(ctx context.Context, runID string) (<-chan RunEvent, error) {
	events, version, err := s.ListEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	ch := make(chan RunEvent, len(events)+watchChanBuffer)
	for _, e := range events {
		ch <- e
	}
	lastVersion := version
	go func() {
		defer close(ch)
		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				all, curVer, err := s.ListEvents(ctx, runID)
				if err != nil {
					return
				}
				for i := lastVersion; i < curVer && i < len(all); i++ {
					select {
					case ch <- all[i]:
					case <-ctx.Done():
						return
					default:
						// 慢消费者：断开订阅，不反压轮询
						return
					}
				}
				lastVersion = curVer
			}
		}
	}()
	return ch, nil
}

func (s *pgStore) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id FROM run_events WHERE version = 1 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
