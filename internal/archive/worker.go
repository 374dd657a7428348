package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/observability/alerting"
	"IRIS-Agents/internal/observability/metrics"
	"IRIS-Agents/pkg/logger"
)

// Worker 从队列消费归档消息并写入 Store。
type Worker struct {
	store       Store
	consumer    Consumer
	workerCount int
	maxAttempts int
	backoff     time.Duration
	alerter     alerting.Dispatcher
	logger      *slog.Logger
}

// WorkerOption 定义可选配置。
type WorkerOption func(*Worker)

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) WorkerOption {
	return func(w *Worker) {
		if workers > 0 {
			w.workerCount = workers
		}
	}
}

// WithRetry 设置单条消息的写入尝试次数与退避基数。
func WithRetry(attempts int, backoff time.Duration) WorkerOption {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
		if backoff >= 0 {
			w.backoff = backoff
		}
	}
}

// WithWorkerLogger 指定日志输出。
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithAlerter 设置重试耗尽时的告警出口。
func WithAlerter(d alerting.Dispatcher) WorkerOption {
	return func(w *Worker) {
		w.alerter = d
	}
}

// NewWorker 构造 Worker。
func NewWorker(store Store, consumer Consumer, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:       store,
		consumer:    consumer,
		workerCount: 1,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
		logger:      logger.Named("archive"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start 启动消费循环，直到 ctx 取消。
func (w *Worker) Start(ctx context.Context) error {
	if w.consumer == nil || w.store == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "归档 Worker 未初始化")
	}
	return w.consumer.Consume(ctx, w.workerCount, w.handle)
}

// handle 在重试耗尽后丢弃消息并写审计日志。
func (w *Worker) handle(ctx context.Context, payload []byte) error {
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		metrics.ObserveArchive(metrics.ArchiveDiscarded)
		w.logger.Warn("丢弃无法解析的归档消息", slog.String("error", err.Error()))
		return nil
	}
	if err := validateRecord(&record); err != nil {
		metrics.ObserveArchive(metrics.ArchiveDiscarded)
		w.logger.Warn("丢弃无效的归档消息", slog.String("error", err.Error()))
		return nil
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		attempts = attempt
		lastErr = w.store.Save(ctx, &record)
		if lastErr == nil {
			metrics.ObserveArchive(metrics.ArchiveSaved)
			auditSaved(&record)
			return nil
		}
		if !xerrors.RetryableError(lastErr) || attempt == w.maxAttempts {
			break
		}
		w.logger.Warn("归档写入失败，准备重试",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}

	metrics.ObserveArchive(metrics.ArchiveFailed)
	w.logger.Error("归档写入失败", slog.String("wallet", record.Wallet), slog.String("error", lastErr.Error()))
	logger.Audit().Warn("时间线归档丢失",
		slog.String("wallet", record.Wallet),
		slog.Int("entries", len(record.Logs)),
		slog.String("code", string(xerrors.CodeOf(lastErr))),
	)
	w.alert(ctx, &record, attempts, lastErr)
	return nil
}

func (w *Worker) alert(ctx context.Context, record *Record, attempts int, cause error) {
	if w.alerter == nil {
		return
	}
	event := alerting.Event{
		Code:        CodeArchiveFailure,
		Message:     "时间线归档重试耗尽",
		Severity:    xerrors.SeverityOf(cause),
		Source:      "archive",
		Subject:     record.ID,
		Attempts:    attempts,
		MaxAttempts: w.maxAttempts,
		Metadata: map[string]string{
			"wallet":  record.Wallet,
			"entries": strconv.Itoa(len(record.Logs)),
			"cause":   string(xerrors.CodeOf(cause)),
		},
	}
	if err := w.alerter.Notify(ctx, event); err != nil {
		w.logger.Warn("发送归档告警失败", slog.String("error", err.Error()))
	}
}
