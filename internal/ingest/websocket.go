package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/pkg/logger"
)

const defaultHandshakeTimeout = 10 * time.Second

// WebsocketIngestor 通过 WebSocket 连接事件源。
type WebsocketIngestor struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	log    *slog.Logger
}

// Option 用于定制 WebsocketIngestor。
type Option func(*WebsocketIngestor)

// WithHandshakeTimeout 设置握手超时时间。
func WithHandshakeTimeout(d time.Duration) Option {
	return func(w *WebsocketIngestor) {
		if d > 0 {
			w.dialer.HandshakeTimeout = d
		}
	}
}

// WithHeader 为握手请求追加请求头，例如 Origin。
func WithHeader(key, value string) Option {
	return func(w *WebsocketIngestor) {
		if strings.TrimSpace(key) != "" && value != "" {
			w.header.Set(key, value)
		}
	}
}

// WithLogger 替换默认日志组件。
func WithLogger(log *slog.Logger) Option {
	return func(w *WebsocketIngestor) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWebsocketIngestor 创建连接到 url 的 Ingestor。
func NewWebsocketIngestor(url string, opts ...Option) (*WebsocketIngestor, error) {
	if strings.TrimSpace(url) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "事件源地址不能为空")
	}
	w := &WebsocketIngestor{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		header: make(http.Header),
		log:    logger.Named("ingest"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Submit 建立新连接并发送提交信封。连接失败时记录日志并返回 CodeTransportFailure。
func (w *WebsocketIngestor) Submit(ctx context.Context, text, submitter string) (*Stream, error) {
	if err := validateSubmission(text); err != nil {
		return nil, err
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.header.Clone())
	if err != nil {
		attrs := []any{slog.String("url", w.url), slog.String("error", err.Error())}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		w.log.Warn("连接事件源失败", attrs...)
		return nil, xerrors.Wrap(xerrors.CodeTransportFailure, err, "连接事件源失败",
			xerrors.WithMetadata("url", w.url))
	}

	if err := conn.WriteJSON(Envelope{Input: text, Wallet: submitter}); err != nil {
		_ = conn.Close()
		w.log.Warn("发送提交信封失败", slog.String("url", w.url), slog.String("error", err.Error()))
		return nil, xerrors.Wrap(xerrors.CodeTransportFailure, err, "发送提交信封失败")
	}

	w.log.Debug("提交已发送", slog.String("url", w.url), slog.Bool("anonymous", submitter == ""))
	return newStream(ctx, &wsSource{conn: conn}, w.log), nil
}

type wsSource struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (s *wsSource) Next(context.Context) ([]byte, error) {
	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

func (s *wsSource) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

var _ Ingestor = (*WebsocketIngestor)(nil)
