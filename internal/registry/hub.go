package registry

import (
	"context"
	"sync"
)

// hub 将最新的 Agent 列表广播给所有订阅者。订阅者处理不及时时只保留最新一份。
// close 之后所有订阅协程退出。
type hub struct {
	mu     sync.Mutex
	subs   map[chan []Agent]struct{}
	latest []Agent
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func newHub() *hub {
	return &hub{subs: make(map[chan []Agent]struct{}), done: make(chan struct{})}
}

func (h *hub) subscribe(ctx context.Context, initial []Agent) <-chan []Agent {
	ch := make(chan []Agent, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.latest = cloneAgents(initial)
	ch <- cloneAgents(initial)
	h.subs[ch] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		select {
		case <-ctx.Done():
			h.unsubscribe(ch)
		case <-h.done:
		}
	}()
	return ch
}

func (h *hub) unsubscribe(ch chan []Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *hub) publish(agents []Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = cloneAgents(agents)
	for ch := range h.subs {
		snapshot := cloneAgents(agents)
		select {
		case ch <- snapshot:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func cloneAgents(agents []Agent) []Agent {
	out := make([]Agent, len(agents))
	copy(out, agents)
	return out
}
