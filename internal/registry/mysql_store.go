package registry

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	xerrors "IRIS-Agents/internal/errors"
	storagemysql "IRIS-Agents/internal/storage/mysql"
	"IRIS-Agents/pkg/logger"
)

// Notifier 在注册表发生变更时通知其他进程。
type Notifier interface {
	Notify(ctx context.Context, agentID string) error
}

// MySQLStore 从 agents 表读取注册表。
type MySQLStore struct {
	db  *sql.DB
	hub *hub
	// refreshMu 保证查询与广播成对完成，避免旧列表覆盖新列表。
	refreshMu sync.Mutex
	notifier  Notifier
	log       *slog.Logger
}

// MySQLOption 定义可选配置。
type MySQLOption func(*MySQLStore)

// WithNotifier 设置跨进程变更通知。未设置时只刷新本进程的订阅者。
func WithNotifier(n Notifier) MySQLOption {
	return func(s *MySQLStore) {
		s.notifier = n
	}
}

// NewMySQLStore 打开连接并执行迁移。
func NewMySQLStore(ctx context.Context, cfg storagemysql.Config, opts ...MySQLOption) (*MySQLStore, error) {
	db, err := storagemysql.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewMySQLStoreWithDB(db, opts...), nil
}

// NewMySQLStoreWithDB 复用已经完成迁移的连接池。
func NewMySQLStoreWithDB(db *sql.DB, opts ...MySQLOption) *MySQLStore {
	s := &MySQLStore{db: db, hub: newHub(), log: logger.Named("registry")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

const selectAgentColumns = `SELECT id, name, description, address FROM agents`

const upsertAgentSQL = `INSERT INTO agents (id, name, description, address, updated_at) VALUES (?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE name = VALUES(name), description = VALUES(description), address = VALUES(address), updated_at = VALUES(updated_at)`

// List 返回按名称排序的 Agent 列表。
func (s *MySQLStore) List(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, selectAgentColumns+` ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询 Agent 列表失败")
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var agent Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Description, &agent.Address); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析 Agent 失败")
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历 Agent 列表失败")
	}
	return agents, nil
}

// Get 返回指定 Agent。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	err := s.db.QueryRowContext(ctx, selectAgentColumns+` WHERE id = ?`, id).
		Scan(&agent.ID, &agent.Name, &agent.Description, &agent.Address)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询 Agent 失败")
	}
	return &agent, nil
}

// Put 写入或更新 Agent，随后通知订阅者。
func (s *MySQLStore) Put(ctx context.Context, agent Agent) error {
	if err := validateAgent(agent); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertAgentSQL,
		agent.ID, agent.Name, agent.Description, agent.Address, time.Now().Unix(),
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 Agent 失败", xerrors.WithMetadata("id", agent.ID))
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, agent.ID); err != nil {
			s.log.Warn("发布 Agent 变更通知失败", slog.String("id", agent.ID), slog.String("error", err.Error()))
		}
		return nil
	}
	return s.Refresh(ctx)
}

// Watch 订阅 Agent 列表变更。
func (s *MySQLStore) Watch(ctx context.Context) (<-chan []Agent, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, list), nil
}

// Refresh 重新读取列表并推送给订阅者。
func (s *MySQLStore) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	list, err := s.List(ctx)
	if err != nil {
		return err
	}
	s.hub.publish(list)
	return nil
}

// Close 关闭订阅与连接池。
func (s *MySQLStore) Close() error {
	s.hub.close()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ Store  = (*MySQLStore)(nil)
	_ Writer = (*MySQLStore)(nil)
)
