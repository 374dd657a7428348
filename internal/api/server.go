package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"IRIS-Agents/internal/archive"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/observability/metrics"
	"IRIS-Agents/internal/registry"
	"IRIS-Agents/internal/wallet"
	"IRIS-Agents/pkg/logger"
)

// Server 暴露归档与注册表的查询接口。
type Server struct {
	addr     string
	archive  archive.Store
	registry registry.Store
	panel    *wallet.Panel
	log      *slog.Logger
}

// Option 定义 Server 的可选依赖。
type Option func(*Server)

// WithWalletPanel 启用 /api/v1/wallets/{address}。
func WithWalletPanel(panel *wallet.Panel) Option {
	return func(s *Server) {
		s.panel = panel
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, logs archive.Store, agents registry.Store, opts ...Option) *Server {
	s := &Server{addr: addr, archive: logs, registry: agents, log: logger.Named("api")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/v1/logs", "logs", s.handleListLogs)
	s.route(mux, "GET /api/v1/logs/{id}", "log_detail", s.handleLogDetail)
	s.route(mux, "GET /api/v1/agents", "agents", s.handleListAgents)
	s.route(mux, "GET /api/v1/agents/{id}", "agent_detail", s.handleAgentDetail)
	s.route(mux, "GET /api/v1/wallets/{address}", "wallet", s.handleWallet)
	s.route(mux, "GET /healthz", "healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, handler http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	}))
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "归档存储未初始化"))
		return
	}
	query := r.URL.Query()
	owner := wallet.Normalize(query.Get("wallet"))
	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := s.archive.List(r.Context(), archive.ListOptions{Wallet: owner, Limit: limit, Offset: offset})
	if err != nil {
		s.log.Error("查询归档列表失败", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLogDetail(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "归档存储未初始化"))
		return
	}
	record, err := s.archive.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "Agent 注册表未初始化"))
		return
	}
	agents, err := s.registry.List(r.Context())
	if err != nil {
		s.log.Error("查询 Agent 列表失败", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registry.Search(agents, r.URL.Query().Get("q")))
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "Agent 注册表未初始化"))
		return
	}
	agent, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if s.panel == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "未配置链客户端"))
		return
	}
	snapshot, err := s.panel.Snapshot(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse 是接口返回的错误结构。
type ErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Code: string(xerrors.CodeOf(err)), Message: err.Error()}
	if coded, ok := xerrors.From(err); ok {
		resp.Message = coded.Message()
		resp.Metadata = coded.Metadata()
	}
	writeJSON(w, xerrors.HTTPStatusOf(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "分页参数必须是非负整数", xerrors.WithMetadata("param", name))
	}
	return value, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
