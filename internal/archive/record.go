package archive

import (
	"strings"
	"time"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/timeline"
)

// Collection 是归档文档所在的集合（表）名。
const Collection = "logs"

// Record 是一次完成的提交周期对应的归档文档。
type Record struct {
	ID        string           `json:"id,omitempty"`
	Logs      []timeline.Entry `json:"logs"`
	Wallet    string           `json:"wallet"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewRecord 基于时间线条目构造归档文档。
func NewRecord(entries []timeline.Entry, wallet string, at time.Time) *Record {
	logs := make([]timeline.Entry, len(entries))
	copy(logs, entries)
	return &Record{Logs: logs, Wallet: wallet, Timestamp: at.UTC()}
}

// Clone 返回深拷贝。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Logs = make([]timeline.Entry, len(r.Logs))
	copy(clone.Logs, r.Logs)
	return &clone
}

// ListOptions 控制归档列表的过滤与分页。
type ListOptions struct {
	Wallet string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func (o ListOptions) normalize() ListOptions {
	o.Wallet = strings.TrimSpace(o.Wallet)
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// CodeArchiveFailure 表示归档写入失败。
const CodeArchiveFailure xerrors.Code = "ARCHIVE_FAILURE"

// ErrRecordNotFound 表示归档记录不存在。
var ErrRecordNotFound = xerrors.New(xerrors.CodeNotFound, "archive record not found")

func init() {
	xerrors.Register(CodeArchiveFailure, xerrors.Attributes{
		Message:   "archive write failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
}

func validateRecord(record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "归档记录不能为空")
	}
	if len(record.Logs) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "归档记录缺少时间线条目")
	}
	return nil
}
