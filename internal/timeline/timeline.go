package timeline

import (
	"net/http"
	"sync"
	"time"

	xerrors "IRIS-Agents/internal/errors"
)

// State 表示一条时间线所处的阶段。
type State string

const (
	StateEmpty      State = "empty"
	StateCollecting State = "collecting"
	StateComplete   State = "complete"
)

// CodeTimelineComplete 表示时间线已经收到 response，不再接受变更。
const CodeTimelineComplete xerrors.Code = "TIMELINE_COMPLETE"

// ErrTimelineComplete 在已完成的时间线上继续 Apply 时返回。
var ErrTimelineComplete = xerrors.New(CodeTimelineComplete, "timeline already complete")

func init() {
	xerrors.Register(CodeTimelineComplete, xerrors.Attributes{
		Message:    "timeline already complete",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusConflict,
	})
}

// Timeline 把入站事件折叠为有序、去重的条目列表。
// 写入通常只发生在一个 goroutine 上，读取可以并发。
type Timeline struct {
	mu       sync.RWMutex
	entries  []Entry
	index    map[string]int
	touched  []time.Time
	complete bool
	now      func() time.Time
}

// Option 用于定制 Timeline。
type Option func(*Timeline)

// WithClock 替换时间来源，主要用于测试超时判定。
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) {
		if now != nil {
			t.now = now
		}
	}
}

// New 创建一条空的时间线。
func New(opts ...Option) *Timeline {
	t := &Timeline{index: make(map[string]int), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Apply 将事件应用到时间线。已完成的时间线返回 ErrTimelineComplete，
// 重复的 response 视为幂等操作。
func (t *Timeline) Apply(ev Event) error {
	if ev == nil {
		return xerrors.New(xerrors.CodeMalformedEvent, "事件为空")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.complete {
		if resp, ok := ev.(Response); ok && t.hasResponse(resp.Data) {
			return nil
		}
		return ErrTimelineComplete
	}

	switch e := ev.(type) {
	case Started:
		if _, ok := t.index[InputID]; !ok {
			t.insert(Entry{ID: InputID, Title: InputTitle, Detail: e.InputDetail(), Status: StatusFinished})
		}
		if _, ok := t.index[e.Agent.ID]; !ok {
			t.insert(Entry{ID: e.Agent.ID, Title: e.Agent.Name, Detail: e.Agent.Description, Status: StatusInProgress})
		}
	case Finished:
		t.upsert(Entry{ID: e.Agent.ID, Title: e.Agent.Name, Detail: e.Agent.Description, Status: StatusFinished})
	case Response:
		if !t.hasResponse(e.Data) {
			t.insert(Entry{ID: ResponseID, Title: ResponseTitle, Detail: e.Data, Status: StatusResponse})
		}
		t.complete = true
	default:
		return xerrors.New(xerrors.CodeMalformedEvent, "未知事件类型")
	}
	return nil
}

// MarkStale 将超过 after 仍处于 in_progress 的 Agent 条目标记为 failure，
// 返回被标记的条目 ID。after 不大于 0 时不做任何处理。
func (t *Timeline) MarkStale(now time.Time, after time.Duration) []string {
	if after <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.complete {
		return nil
	}
	var marked []string
	for i := range t.entries {
		entry := &t.entries[i]
		if !entry.IsAgent() || entry.Status != StatusInProgress {
			continue
		}
		if now.Sub(t.touched[i]) < after {
			continue
		}
		entry.Status = StatusFailure
		t.touched[i] = now
		marked = append(marked, entry.ID)
	}
	return marked
}

// Reset 清空时间线，开始新的提交周期。
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.touched = nil
	t.index = make(map[string]int)
	t.complete = false
}

// Entries 按插入顺序返回条目副本。
func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len 返回条目数量。
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// State 返回当前阶段。
func (t *Timeline) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case t.complete:
		return StateComplete
	case len(t.entries) == 0:
		return StateEmpty
	default:
		return StateCollecting
	}
}

// Response 返回最终响应内容。
func (t *Timeline) Response() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if idx, ok := t.index[ResponseID]; ok {
		return t.entries[idx].Detail, true
	}
	return "", false
}

func (t *Timeline) insert(entry Entry) {
	t.index[entry.ID] = len(t.entries)
	t.entries = append(t.entries, entry)
	t.touched = append(t.touched, t.now())
}

func (t *Timeline) upsert(entry Entry) {
	idx, ok := t.index[entry.ID]
	if !ok {
		t.insert(entry)
		return
	}
	t.entries[idx] = entry
	t.touched[idx] = t.now()
}

func (t *Timeline) hasResponse(detail string) bool {
	idx, ok := t.index[ResponseID]
	return ok && t.entries[idx].Detail == detail
}
