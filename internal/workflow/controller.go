package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"IRIS-Agents/internal/archive"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/ingest"
	"IRIS-Agents/internal/observability/metrics"
	"IRIS-Agents/internal/timeline"
	"IRIS-Agents/internal/wallet"
	"IRIS-Agents/pkg/logger"
)

// Observer 在每次时间线变化后收到快照。回调在 Run 的 goroutine 中同步执行。
type Observer func(Snapshot)

// Controller 负责提交请求并驱动每个 Run 的时间线。
type Controller struct {
	ingestor       ingest.Ingestor
	archiver       archive.Archiver
	observers      []Observer
	staleAfter     time.Duration
	archiveTimeout time.Duration
	now            func() time.Time
	log            *slog.Logger

	mu      sync.Mutex
	current *Run
}

// Option 定义 Controller 的可选配置。
type Option func(*Controller)

// WithArchiver 设置完成后的归档方式。未设置时不归档。
func WithArchiver(a archive.Archiver) Option {
	return func(c *Controller) {
		c.archiver = a
	}
}

// WithObserver 注册时间线观察者。
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithStaleTimeout 设置 Agent 停留在 in_progress 的最长时间，超时后标记为 failure。
// 不大于 0 表示关闭。
func WithStaleTimeout(after time.Duration) Option {
	return func(c *Controller) {
		c.staleAfter = after
	}
}

// WithArchiveTimeout 设置单次归档的超时时间。
func WithArchiveTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.archiveTimeout = d
		}
	}
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger 替换默认日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// NewController 创建 Controller。
func NewController(ingestor ingest.Ingestor, opts ...Option) *Controller {
	c := &Controller{
		ingestor:       ingestor,
		archiveTimeout: 10 * time.Second,
		now:            time.Now,
		log:            logger.Named("workflow"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Submit 规范化提交者标识，打开新的事件流，并以空时间线开始新的 Run。
// 连接失败时不会创建 Run，当前 Run 保持不变。
func (c *Controller) Submit(ctx context.Context, text, submitter string) (*Run, error) {
	if c == nil || c.ingestor == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "工作流未配置事件源")
	}
	normalized := wallet.Normalize(submitter)

	stream, err := c.ingestor.Submit(ctx, text, normalized)
	if err != nil {
		metrics.ObserveWorkflowEvent(metrics.WorkflowSubmitFailed)
		c.log.Warn("提交失败", slog.String("wallet", normalized), slog.String("error", err.Error()))
		return nil, err
	}

	run := newRun(uuid.NewString(), normalized, c.now(), timeline.New(timeline.WithClock(c.now)), stream)
	c.mu.Lock()
	c.current = run
	c.mu.Unlock()

	metrics.ObserveWorkflowEvent(metrics.WorkflowSubmitted)
	logger.Audit().Info("提交工作流请求",
		slog.String("run_id", run.id),
		slog.String("wallet", normalized),
		slog.Int("input_length", len(text)),
	)

	c.notify(run)
	go c.drive(run)
	return run, nil
}

// Current 返回最近一次提交的 Run。
func (c *Controller) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close 取消当前 Run。
func (c *Controller) Close() {
	if run := c.Current(); run != nil {
		run.Cancel()
	}
}

func (c *Controller) drive(run *Run) {
	defer close(run.done)

	var sweep <-chan time.Time
	if c.staleAfter > 0 {
		ticker := time.NewTicker(sweepInterval(c.staleAfter))
		defer ticker.Stop()
		sweep = ticker.C
	}

	events := run.stream.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.finish(run)
				return
			}
			c.apply(run, ev)
		case <-sweep:
			marked := run.timeline.MarkStale(c.now(), c.staleAfter)
			if len(marked) == 0 {
				continue
			}
			metrics.AddWorkflowEvents(metrics.WorkflowAgentStale, len(marked))
			c.log.Warn("Agent 长时间未完成，标记为失败",
				slog.String("run_id", run.id),
				slog.Any("agents", marked),
			)
			c.notify(run)
		}
	}
}

func (c *Controller) apply(run *Run, ev timeline.Event) {
	if err := run.timeline.Apply(ev); err != nil {
		metrics.ObserveWorkflowEvent(metrics.WorkflowEventDropped)
		c.log.Warn("事件未应用", slog.String("run_id", run.id), slog.String("type", string(ev.Type())), slog.String("error", err.Error()))
		return
	}
	metrics.ObserveWorkflowEvent(metrics.WorkflowEventApplied)
	c.notify(run)

	if ev.Type() == timeline.EventResponse {
		metrics.ObserveWorkflowEvent(metrics.WorkflowCompleted)
		c.archive(run)
	}
}

// archive 的失败只记录日志，不影响 Run 的结果。
func (c *Controller) archive(run *Run) {
	if c.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.archiveTimeout)
	defer cancel()

	record := archive.NewRecord(run.timeline.Entries(), run.submitter, c.now())
	if err := c.archiver.Archive(ctx, record); err != nil {
		c.log.Error("归档时间线失败",
			slog.String("run_id", run.id),
			slog.String("wallet", run.submitter),
			slog.String("error", err.Error()),
		)
		return
	}
	c.log.Debug("时间线已提交归档", slog.String("run_id", run.id), slog.String("record_id", record.ID))
}

func (c *Controller) finish(run *Run) {
	if dropped := run.stream.Dropped(); dropped > 0 {
		metrics.AddWorkflowEvents(metrics.WorkflowEventDropped, int(dropped))
	}
	status := run.finish()
	if status == StatusInterrupted {
		metrics.ObserveWorkflowEvent(metrics.WorkflowTransportFailed)
		c.log.Warn("连接在收到响应前结束",
			slog.String("run_id", run.id),
			slog.Int("entries", run.timeline.Len()),
			slog.String("error", run.Err().Error()),
		)
	}
	c.notify(run)
}

func (c *Controller) notify(run *Run) {
	if len(c.observers) == 0 {
		return
	}
	snapshot := run.Snapshot()
	for _, fn := range c.observers {
		fn(snapshot)
	}
}

func sweepInterval(after time.Duration) time.Duration {
	interval := after / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}
