// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gbstd/std-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// TaskStoreConfig controls the Postgres connection pool used for the task
// history table.
type TaskStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// TaskStore mirrors task submissions and terminal transitions into Postgres
// so task history survives restarts. It is an audit trail next to the
// in-memory registry, not a replacement for it.
type TaskStore struct {
	pool  execCloser
	table string
}

// NewTaskStore creates a Postgres-backed TaskStore using the provided config.
func NewTaskStore(ctx context.Context, cfg TaskStoreConfig) (*TaskStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "crawl_tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &TaskStore{pool: pool, table: table}, nil
}

// NewTaskStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewTaskStoreWithPool(pool execCloser, table string) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "crawl_tasks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TaskStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordSubmission inserts a row for a newly submitted task.
func (s *TaskStore) RecordSubmission(ctx context.Context, task crawler.Task) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store is not configured")
	}
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	paramsJSON, err := json.Marshal(task.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (task_id, status, params, created_at)
VALUES ($1, $2, $3, $4)
`, s.table)
	if _, err := s.pool.Exec(ctx, query, task.ID, string(task.Status), paramsJSON, task.CreatedAt); err != nil {
		return fmt.Errorf("insert task row: %w", err)
	}
	return nil
}

// RecordTerminal updates the row for a task that reached a terminal state.
func (s *TaskStore) RecordTerminal(ctx context.Context, task crawler.Task, finishedAt time.Time) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store is not configured")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, message = $3, total = $4, file = $5, finished_at = $6
WHERE task_id = $1
`, s.table)
	if _, err := s.pool.Exec(ctx, query,
		task.ID,
		string(task.Status),
		task.Message,
		task.Total,
		task.File,
		finishedAt,
	); err != nil {
		return fmt.Errorf("update task row: %w", err)
	}
	return nil
}
