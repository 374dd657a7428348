package workflow

import (
	"context"
	"sync"
	"time"

	"IRIS-Agents/internal/ingest"
	"IRIS-Agents/internal/timeline"
)

// Status 描述一次提交的运行状态。
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusCancelled   Status = "cancelled"
)

// Snapshot 是某一时刻的只读视图，推送给观察者。
type Snapshot struct {
	RunID     string           `json:"run_id"`
	Submitter string           `json:"wallet"`
	Status    Status           `json:"status"`
	State     timeline.State   `json:"state"`
	Entries   []timeline.Entry `json:"entries"`
	StartedAt time.Time        `json:"started_at"`
}

// Run 表示一次提交。每个 Run 拥有自己的时间线与连接。
type Run struct {
	id        string
	submitter string
	startedAt time.Time
	timeline  *timeline.Timeline
	stream    *ingest.Stream
	done      chan struct{}

	mu        sync.Mutex
	status    Status
	err       error
	cancelled bool
}

func newRun(id, submitter string, startedAt time.Time, tl *timeline.Timeline, stream *ingest.Stream) *Run {
	return &Run{
		id:        id,
		submitter: submitter,
		startedAt: startedAt,
		timeline:  tl,
		stream:    stream,
		done:      make(chan struct{}),
		status:    StatusRunning,
	}
}

// ID 返回 Run 的唯一标识。
func (r *Run) ID() string { return r.id }

// Submitter 返回规范化后的钱包地址，匿名提交时为空。
func (r *Run) Submitter() string { return r.submitter }

// Done 在 Run 结束后关闭。
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait 阻塞到 Run 结束或 ctx 取消。连接在收到响应前中断时返回 TRANSPORT_FAILURE。
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err 返回 Run 的终止原因。
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Status 返回当前状态。
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot 返回当前时间线的副本。
func (r *Run) Snapshot() Snapshot {
	return Snapshot{
		RunID:     r.id,
		Submitter: r.submitter,
		Status:    r.Status(),
		State:     r.timeline.State(),
		Entries:   r.timeline.Entries(),
		StartedAt: r.startedAt,
	}
}

// Cancel 关闭连接，时间线保留当前内容。
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	_ = r.stream.Close()
}

func (r *Run) finish() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.timeline.State() == timeline.StateComplete:
		r.status = StatusCompleted
	case r.cancelled:
		r.status = StatusCancelled
	case r.stream.Err() != nil:
		r.status = StatusInterrupted
		r.err = r.stream.Err()
	default:
		r.status = StatusCancelled
	}
	return r.status
}
