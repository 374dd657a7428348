package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"IRIS-Agents/pkg/logger"
)

// ReplayIngestor 将预先录制的原始消息按顺序回放，不依赖网络。
// 每次 Submit 都会回放完整的消息序列。
type ReplayIngestor struct {
	messages [][]byte
	dialErr  error
	log      *slog.Logger

	mu          sync.Mutex
	submissions []Envelope
}

// NewReplayIngestor 使用给定的原始消息创建回放 Ingestor。
func NewReplayIngestor(messages ...string) *ReplayIngestor {
	r := &ReplayIngestor{log: logger.Named("ingest.replay")}
	for _, msg := range messages {
		r.messages = append(r.messages, []byte(msg))
	}
	return r
}

// FailWith 让后续 Submit 以 err 模拟连接失败。
func (r *ReplayIngestor) FailWith(err error) *ReplayIngestor {
	r.dialErr = err
	return r
}

// Submit 记录提交信封并返回回放事件流。
func (r *ReplayIngestor) Submit(ctx context.Context, text, submitter string) (*Stream, error) {
	if err := validateSubmission(text); err != nil {
		return nil, err
	}
	if r.dialErr != nil {
		r.log.Warn("连接事件源失败", slog.String("error", r.dialErr.Error()))
		return nil, r.dialErr
	}

	r.mu.Lock()
	r.submissions = append(r.submissions, Envelope{Input: text, Wallet: submitter})
	r.mu.Unlock()

	msgs := make([][]byte, len(r.messages))
	copy(msgs, r.messages)
	return newStream(ctx, &replaySource{messages: msgs, closed: make(chan struct{})}, r.log), nil
}

// Submissions 返回已经发送的信封。
func (r *ReplayIngestor) Submissions() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.submissions))
	copy(out, r.submissions)
	return out
}

type replaySource struct {
	messages [][]byte
	pos      int
	once     sync.Once
	closed   chan struct{}
}

func (s *replaySource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-s.closed:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if s.pos >= len(s.messages) {
		return nil, io.EOF
	}
	msg := s.messages[s.pos]
	s.pos++
	return msg, nil
}

func (s *replaySource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

var _ Ingestor = (*ReplayIngestor)(nil)
