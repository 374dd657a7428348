package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/timeline"
	"IRIS-Agents/pkg/logger"
)

// Envelope 是提交时发送给事件源的唯一一条消息。
type Envelope struct {
	Input  string `json:"input"`
	Wallet string `json:"wallet"`
}

// Ingestor 为每次提交建立独立连接，并返回入站事件流。
type Ingestor interface {
	Submit(ctx context.Context, text, submitter string) (*Stream, error)
}

// source 抽象了底层连接，Next 在连接结束时返回错误。
type source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Stream 按传输顺序输出校验过的事件。收到 response 并被消费后自动关闭连接。
type Stream struct {
	events chan timeline.Event
	done   chan struct{}
	src    source
	log    *slog.Logger

	closeOnce sync.Once
	closeErr  error

	mu  sync.Mutex
	err error

	dropped atomic.Int64
}

func newStream(ctx context.Context, src source, log *slog.Logger) *Stream {
	if log == nil {
		log = logger.Named("ingest")
	}
	s := &Stream{
		events: make(chan timeline.Event),
		done:   make(chan struct{}),
		src:    src,
		log:    log,
	}
	go s.pump(ctx)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Events 返回事件通道，连接结束后通道关闭。
func (s *Stream) Events() <-chan timeline.Event {
	return s.events
}

// Done 在连接关闭后关闭。
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err 返回连接在收到 response 之前意外结束的原因。主动关闭或正常完成时为 nil。
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped 返回被丢弃的畸形消息数量。
func (s *Stream) Dropped() int64 {
	return s.dropped.Load()
}

// Close 关闭连接，可以重复调用。
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}

func (s *Stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) pump(ctx context.Context) {
	defer close(s.events)
	for {
		raw, err := s.src.Next(ctx)
		if err != nil {
			if !s.closed() && ctx.Err() == nil {
				wrapped := xerrors.Wrap(xerrors.CodeTransportFailure, err, "连接在收到响应前结束")
				s.fail(wrapped)
				s.log.Warn("事件流中断", slog.String("error", err.Error()))
				_ = s.Close()
			}
			return
		}

		ev, err := timeline.ParseEvent(raw)
		if err != nil {
			s.dropped.Add(1)
			s.log.Warn("丢弃畸形事件",
				slog.String("error", err.Error()),
				slog.String("payload", preview(raw)),
			)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}

		if ev.Type() == timeline.EventResponse {
			s.log.Debug("收到最终响应，关闭连接")
			_ = s.Close()
			return
		}
	}
}

func validateSubmission(text string) error {
	if strings.TrimSpace(text) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "提交内容不能为空")
	}
	return nil
}

func preview(raw []byte) string {
	const limit = 256
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
