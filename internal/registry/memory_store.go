package registry

import (
	"context"
	"sync"
)

// MemoryStore 在内存中保存 Agent 列表。
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]Agent
	hub    *hub
}

// NewMemoryStore 创建 MemoryStore，可选地预置一批 Agent。
func NewMemoryStore(initial ...Agent) *MemoryStore {
	m := &MemoryStore{agents: make(map[string]Agent), hub: newHub()}
	for _, agent := range initial {
		if validateAgent(agent) == nil {
			m.agents[agent.ID] = agent
		}
	}
	return m
}

// Put 新增或更新 Agent 并通知订阅者。广播在持锁期间完成，订阅者看到的顺序与写入顺序一致。
func (m *MemoryStore) Put(_ context.Context, agent Agent) error {
	if err := validateAgent(agent); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	m.hub.publish(m.snapshotLocked())
	return nil
}

// Delete 移除 Agent 并通知订阅者。
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return ErrAgentNotFound
	}
	delete(m.agents, id)
	m.hub.publish(m.snapshotLocked())
	return nil
}

// List 返回按名称排序的 Agent 列表。
func (m *MemoryStore) List(context.Context) ([]Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

// Get 返回指定 Agent。
func (m *MemoryStore) Get(_ context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return &agent, nil
}

// Watch 订阅 Agent 列表变更。
func (m *MemoryStore) Watch(ctx context.Context) (<-chan []Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hub.subscribe(ctx, m.snapshotLocked()), nil
}

// Refresh 将当前列表重新推送给订阅者。
func (m *MemoryStore) Refresh(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.hub.publish(m.snapshotLocked())
	return nil
}

// Close 关闭所有订阅。
func (m *MemoryStore) Close() error {
	m.hub.close()
	return nil
}

func (m *MemoryStore) snapshotLocked() []Agent {
	out := make([]Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		out = append(out, agent)
	}
	sortAgents(out)
	return out
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Writer = (*MemoryStore)(nil)
)
