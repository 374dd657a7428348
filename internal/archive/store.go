package archive

import "context"

// Store 抽象归档文档的持久化。写入只追加，不修改已有文档。
type Store interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Close() error
}
