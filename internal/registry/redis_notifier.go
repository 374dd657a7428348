package registry

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	xerrors "IRIS-Agents/internal/errors"
	storageredis "IRIS-Agents/internal/storage/redis"
	"IRIS-Agents/pkg/logger"
)

// Refresher 在收到变更通知后重新加载数据。
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RedisNotifierConfig 描述变更通知使用的 Redis 频道。
type RedisNotifierConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// RedisNotifier 通过 Redis pub/sub 在多个进程之间同步注册表变更。
type RedisNotifier struct {
	client  *goredis.Client
	channel string
	log     *slog.Logger
}

// NewRedisNotifier 创建 RedisNotifier。
func NewRedisNotifier(ctx context.Context, cfg RedisNotifierConfig) (*RedisNotifier, error) {
	client, err := storageredis.NewClient(ctx, storageredis.Config{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, err
	}
	return newRedisNotifier(client, cfg.Channel), nil
}

func newRedisNotifier(client *goredis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "iris:agents"
	}
	return &RedisNotifier{client: client, channel: channel, log: logger.Named("registry")}
}

// Notify 发布一次变更。
func (n *RedisNotifier) Notify(ctx context.Context, agentID string) error {
	if err := n.client.Publish(ctx, n.channel, agentID).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "发布 Agent 变更失败")
	}
	return nil
}

// Run 订阅频道，每收到一条通知就调用 target.Refresh，直到 ctx 取消。
func (n *RedisNotifier) Run(ctx context.Context, target Refresher) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "订阅 Agent 变更失败")
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := target.Refresh(ctx); err != nil {
				n.log.Warn("刷新 Agent 列表失败", slog.String("agent", msg.Payload), slog.String("error", err.Error()))
				continue
			}
			n.log.Debug("Agent 列表已刷新", slog.String("agent", msg.Payload))
		}
	}
}

// Close 关闭 Redis 连接。
func (n *RedisNotifier) Close() error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
