// Package bootstrap 根据配置构造守护进程与命令行共用的组件。
package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"IRIS-Agents/internal/archive"
	"IRIS-Agents/internal/config"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/ingest"
	"IRIS-Agents/internal/observability/alerting"
	"IRIS-Agents/internal/registry"
	storagemysql "IRIS-Agents/internal/storage/mysql"
	"IRIS-Agents/pkg/logger"
)

// 驱动名称。
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverDirect   = "direct"
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
)

// ErrUnsupportedDriver 表示配置了未知的驱动。
var ErrUnsupportedDriver = xerrors.New(xerrors.CodeInvalidArgument, "不支持的驱动")

func unsupported(kind, driver string) error {
	return xerrors.Wrap(xerrors.CodeInvalidArgument, ErrUnsupportedDriver, "不支持的驱动",
		xerrors.WithMetadata("component", kind), xerrors.WithMetadata("driver", driver))
}

// Prepare 初始化日志并创建数据目录。
func Prepare(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "创建数据目录失败",
			xerrors.WithMetadata("path", cfg.Runtime.DataDir))
	}
	return nil
}

func mysqlConfig(store config.StoreConfig) storagemysql.Config {
	return storagemysql.Config{
		DSN:             store.DSN,
		MaxOpenConns:    store.MaxOpenConns,
		MaxIdleConns:    store.MaxIdleConns,
		ConnMaxLifetime: store.ConnMaxLifetime(),
	}
}

// OpenArchiveStore 按配置打开归档存储。
func OpenArchiveStore(ctx context.Context, cfg *config.Config) (archive.Store, error) {
	switch driver := strings.ToLower(cfg.Archive.Store.Driver); driver {
	case "", DriverMemory:
		store, err := archive.NewMemoryStore(cfg.Runtime.DataDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMySQL:
		store, err := archive.NewMySQLStore(ctx, mysqlConfig(cfg.Archive.Store))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, unsupported("archive.store", driver)
	}
}

// SharedQueue 报告归档队列是否可以跨进程投递与消费。
// memory 与 direct 队列只在提交进程内有效，由提交方直接写入存储。
func SharedQueue(cfg *config.Config) bool {
	switch strings.ToLower(strings.TrimSpace(cfg.Archive.Queue.Driver)) {
	case DriverRedis, DriverRabbitMQ:
		return true
	default:
		return false
	}
}

// OpenArchiveQueue 按配置打开归档队列。driver 为 direct 时返回 nil，表示同步写入。
func OpenArchiveQueue(ctx context.Context, cfg *config.Config) (archive.Queue, error) {
	q := cfg.Archive.Queue
	switch driver := strings.ToLower(q.Driver); driver {
	case DriverDirect:
		return nil, nil
	case "", DriverMemory:
		return archive.NewMemoryQueue(1024), nil
	case DriverRedis:
		queue, err := archive.NewRedisQueue(ctx, archive.RedisQueueConfig{
			Address:   q.Redis.Address,
			Password:  q.Redis.Password,
			DB:        q.Redis.DB,
			Queue:     q.Redis.Queue,
			BlockWait: time.Duration(q.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	case DriverRabbitMQ:
		queue, err := archive.NewRabbitMQQueue(archive.RabbitMQConfig{
			URL:        q.RabbitMQ.URL,
			Queue:      q.RabbitMQ.Queue,
			Prefetch:   q.RabbitMQ.Prefetch,
			Durable:    q.RabbitMQ.Durable,
			AutoDelete: q.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	default:
		return nil, unsupported("archive.queue", driver)
	}
}

// NewArchiver 在有队列时异步投递，否则直接写入存储。
func NewArchiver(store archive.Store, queue archive.Producer) archive.Archiver {
	if queue == nil {
		return archive.NewDirectArchiver(store)
	}
	return archive.NewDispatcher(queue)
}

// NewAlerter 始终写日志告警，配置了 webhook 时同时推送。
func NewAlerter(cfg *config.Config) *alerting.FanoutDispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if url := strings.TrimSpace(cfg.Archive.AlertWebhook); url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url})
	}
	return alerting.NewFanout(notifiers...)
}

// Registry 聚合注册表存储与可选的跨进程通知。
type Registry struct {
	Store    registry.Store
	Notifier *registry.RedisNotifier
	// Refresher 为 Notifier 收到变更后需要刷新的对象。
	Refresher registry.Refresher
}

// Close 关闭注册表相关资源。
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	if r.Notifier != nil {
		_ = r.Notifier.Close()
	}
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// OpenRegistry 打开注册表并写入种子数据。
func OpenRegistry(ctx context.Context, cfg *config.Config) (*Registry, error) {
	seed, err := loadSeed(cfg.Registry.SeedPath)
	if err != nil {
		return nil, err
	}

	switch driver := strings.ToLower(cfg.Registry.Store.Driver); driver {
	case "", DriverMemory:
		return &Registry{Store: registry.NewMemoryStore(seed...)}, nil
	case DriverMySQL:
		out := &Registry{}
		var opts []registry.MySQLOption
		if notify := cfg.Registry.Notify; strings.TrimSpace(notify.Address) != "" {
			notifier, err := registry.NewRedisNotifier(ctx, registry.RedisNotifierConfig{
				Address:  notify.Address,
				Password: notify.Password,
				DB:       notify.DB,
				Channel:  notify.Channel,
			})
			if err != nil {
				return nil, err
			}
			out.Notifier = notifier
			opts = append(opts, registry.WithNotifier(notifier))
		}
		store, err := registry.NewMySQLStore(ctx, mysqlConfig(cfg.Registry.Store), opts...)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out.Store = store
		out.Refresher = store
		if err := registry.Seed(ctx, store, seed); err != nil {
			_ = out.Close()
			return nil, err
		}
		return out, nil
	default:
		return nil, unsupported("registry.store", driver)
	}
}

func loadSeed(path string) ([]registry.Agent, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	agents, err := registry.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	logger.Named("bootstrap").Debug("已加载初始 Agent", slog.Int("count", len(agents)), slog.String("path", path))
	return agents, nil
}

// NewIngestor 创建连接工作流事件源的 WebSocket Ingestor。
func NewIngestor(cfg *config.Config) (*ingest.WebsocketIngestor, error) {
	opts := []ingest.Option{ingest.WithHandshakeTimeout(cfg.Events.HandshakeTimeout())}
	if origin := strings.TrimSpace(cfg.Events.Origin); origin != "" {
		opts = append(opts, ingest.WithHeader("Origin", origin))
	}
	return ingest.NewWebsocketIngestor(cfg.Events.URL, opts...)
}
