package archive

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/observability/metrics"
	"IRIS-Agents/pkg/logger"
)

// Archiver 接收完成的时间线。实现可以异步写入。
type Archiver interface {
	Archive(ctx context.Context, record *Record) error
}

// Dispatcher 将归档记录序列化后投递到队列，由 Worker 异步落库。
type Dispatcher struct {
	producer Producer
	log      *slog.Logger
}

// NewDispatcher 创建 Dispatcher。
func NewDispatcher(producer Producer) *Dispatcher {
	return &Dispatcher{producer: producer, log: logger.Named("archive")}
}

// Archive 实现 Archiver 接口。
func (d *Dispatcher) Archive(ctx context.Context, record *Record) error {
	if d == nil || d.producer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置归档队列")
	}
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return xerrors.Wrap(CodeArchiveFailure, err, "序列化归档记录失败")
	}
	if err := d.producer.Publish(ctx, payload); err != nil {
		metrics.ObserveArchive(metrics.ArchiveFailed)
		d.log.Error("投递归档消息失败", slog.String("wallet", record.Wallet), slog.String("error", err.Error()))
		return xerrors.Wrap(CodeArchiveFailure, err, "投递归档消息失败")
	}
	metrics.ObserveArchive(metrics.ArchivePublished)
	return nil
}

// DirectArchiver 直接同步写入存储。
type DirectArchiver struct {
	store Store
}

// NewDirectArchiver 创建 DirectArchiver。
func NewDirectArchiver(store Store) *DirectArchiver {
	return &DirectArchiver{store: store}
}

// Archive 实现 Archiver 接口。
func (a *DirectArchiver) Archive(ctx context.Context, record *Record) error {
	if a == nil || a.store == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置归档存储")
	}
	if err := a.store.Save(ctx, record); err != nil {
		metrics.ObserveArchive(metrics.ArchiveFailed)
		return xerrors.Wrap(CodeArchiveFailure, err, "写入归档记录失败")
	}
	metrics.ObserveArchive(metrics.ArchiveSaved)
	auditSaved(record)
	return nil
}

func auditSaved(record *Record) {
	logger.Audit().Info("时间线已归档",
		slog.String("id", record.ID),
		slog.String("wallet", record.Wallet),
		slog.Int("entries", len(record.Logs)),
		slog.Time("timestamp", record.Timestamp),
	)
}

var (
	_ Archiver = (*Dispatcher)(nil)
	_ Archiver = (*DirectArchiver)(nil)
)
