package archive

import "context"

// Handler 处理队列中的一条归档消息。返回可重试错误时消息会被重新投递。
type Handler func(ctx context.Context, payload []byte) error

// Producer 负责向队列投递归档消息。
type Producer interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Consumer 负责从队列中消费归档消息。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
