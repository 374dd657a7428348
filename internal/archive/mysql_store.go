package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "IRIS-Agents/internal/errors"
	storagemysql "IRIS-Agents/internal/storage/mysql"
)

// MySQLStore 将归档文档写入 logs 表。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 打开连接并执行迁移。
func NewMySQLStore(ctx context.Context, cfg storagemysql.Config) (*MySQLStore, error) {
	db, err := storagemysql.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// NewMySQLStoreWithDB 复用已经完成迁移的连接池。
func NewMySQLStoreWithDB(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

const insertRecordSQL = `INSERT INTO logs (id, wallet, entries, created_at) VALUES (?, ?, ?, ?)`

const selectRecordColumns = `SELECT id, wallet, entries, created_at FROM logs`

// Save 插入一条归档文档。
func (s *MySQLStore) Save(ctx context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	entries, err := json.Marshal(record.Logs)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码时间线条目失败")
	}
	if _, err := s.db.ExecContext(ctx, insertRecordSQL,
		record.ID,
		record.Wallet,
		string(entries),
		record.Timestamp.UnixMilli(),
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入归档记录失败", xerrors.WithMetadata("id", record.ID))
	}
	return nil
}

// Get 按 ID 查询归档文档。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecordColumns+` WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	return record, nil
}

// List 按时间倒序分页查询。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.normalize()

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectRecordColumns)
	if opts.Wallet != "" {
		query.WriteString(` WHERE wallet = ?`)
		args = append(args, opts.Wallet)
	}
	query.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档列表失败")
	}
	defer rows.Close()

	records := make([]Record, 0, opts.Limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档记录失败")
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历归档记录失败")
	}
	return records, nil
}

// Close 关闭连接池。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		record    Record
		entries   string
		createdAt int64
	)
	if err := row.Scan(&record.ID, &record.Wallet, &entries, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entries), &record.Logs); err != nil {
		return nil, err
	}
	record.Timestamp = time.UnixMilli(createdAt).UTC()
	return &record, nil
}

var _ Store = (*MySQLStore)(nil)
