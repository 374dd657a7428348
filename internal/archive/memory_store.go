package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "IRIS-Agents/internal/errors"
)

const logsFileName = Collection + ".jsonl"

// MemoryStore 在内存中保存归档记录，指定数据目录时同时追加写入 JSONL 文件。
// 同一数据目录可能被多个进程共享（守护进程读、命令行写），
// 每次访问前若文件大小或修改时间变化则重新加载。
type MemoryStore struct {
	mu       sync.RWMutex
	dataFile string
	records  []*Record
	index    map[string]*Record
	size     int64
	modTime  time.Time
}

// NewMemoryStore 创建 MemoryStore。dataDir 为空时只保存在内存中。
func NewMemoryStore(dataDir string) (*MemoryStore, error) {
	store := &MemoryStore{index: make(map[string]*Record)}
	if strings.TrimSpace(dataDir) == "" {
		return store, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建数据目录失败")
	}
	store.dataFile = filepath.Join(dataDir, logsFileName)
	if err := store.reloadLocked(); err != nil {
		return nil, err
	}
	return store, nil
}

// sync 在文件被其他进程改写后重新加载。
func (m *MemoryStore) sync() error {
	if m.dataFile == "" {
		return nil
	}
	m.mu.RLock()
	changed, err := m.changedLocked()
	m.mu.RUnlock()
	if err != nil || !changed {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *MemoryStore) changedLocked() (bool, error) {
	info, err := os.Stat(m.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return m.size != 0, nil
		}
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档文件状态失败")
	}
	return info.Size() != m.size || !info.ModTime().Equal(m.modTime), nil
}

// reloadLocked 丢弃内存中的记录并从文件完整读取，调用方需持有写锁。
func (m *MemoryStore) reloadLocked() error {
	changed, err := m.changedLocked()
	if err != nil {
		return err
	}
	if !changed && m.records != nil {
		return nil
	}
	m.records = nil
	m.index = make(map[string]*Record)
	m.size, m.modTime = 0, time.Time{}
	return m.loadFromDisk()
}

// Save 追加一条归档记录，缺省时分配 ID 与时间戳。
func (m *MemoryStore) Save(_ context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dataFile != "" {
		if err := m.reloadLocked(); err != nil {
			return err
		}
	}
	if _, ok := m.index[record.ID]; ok {
		return xerrors.New(xerrors.CodeInvalidArgument, "归档记录已存在", xerrors.WithMetadata("id", record.ID))
	}
	if m.dataFile != "" {
		if err := m.appendToDisk(record); err != nil {
			return err
		}
	}
	clone := record.Clone()
	m.records = append(m.records, clone)
	m.index[clone.ID] = clone
	return nil
}

// Get 按 ID 返回归档记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	if err := m.sync(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.index[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return record.Clone(), nil
}

// List 按时间倒序返回归档记录。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.normalize()
	if err := m.sync(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		if opts.Wallet != "" && !strings.EqualFold(record.Wallet, opts.Wallet) {
			continue
		}
		matched = append(matched, record)
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if opts.Offset >= len(matched) {
		return []Record{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]Record, 0, end-opts.Offset)
	for _, record := range matched[opts.Offset:end] {
		out = append(out, *record.Clone())
	}
	return out, nil
}

// Close 实现 Store 接口。
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) appendToDisk(record *Record) error {
	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开归档文件失败")
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化归档记录失败")
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入归档文件失败")
	}
	return nil
}

func (m *MemoryStore) loadFromDisk() error {
	file, err := os.Open(m.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档文件失败")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档文件失败")
		}
		if record.ID == "" {
			continue
		}
		m.records = append(m.records, &record)
		m.index[record.ID] = &record
	}
	if err := scanner.Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "扫描归档文件失败")
	}
	return m.statLocked()
}

// statLocked 记录文件当前的大小与修改时间。
func (m *MemoryStore) statLocked() error {
	if m.dataFile == "" {
		return nil
	}
	info, err := os.Stat(m.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取归档文件状态失败")
	}
	m.size, m.modTime = info.Size(), info.ModTime()
	return nil
}

var _ Store = (*MemoryStore)(nil)
