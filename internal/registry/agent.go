package registry

import (
	"context"
	"net/http"
	"sort"
	"strings"

	xerrors "IRIS-Agents/internal/errors"
)

// Agent 描述注册表中的一个 Agent。
type Agent struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Address     string `json:"address,omitempty" yaml:"address"`
}

// Store 是 Agent 注册表的读接口。Watch 在订阅时与每次变更后推送完整列表，
// ctx 取消后通道关闭。
type Store interface {
	List(ctx context.Context) ([]Agent, error)
	Get(ctx context.Context, id string) (*Agent, error)
	Watch(ctx context.Context) (<-chan []Agent, error)
	Close() error
}

// Writer 用于初始化或更新注册表。
type Writer interface {
	Put(ctx context.Context, agent Agent) error
}

// CodeAgentNotFound 表示 Agent 不存在。
const CodeAgentNotFound xerrors.Code = "AGENT_NOT_FOUND"

// ErrAgentNotFound 表示指定的 Agent 不存在。
var ErrAgentNotFound = xerrors.New(CodeAgentNotFound, "agent not found")

func init() {
	xerrors.Register(CodeAgentNotFound, xerrors.Attributes{
		Message:    "agent not found",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	})
}

// Search 按名称做不区分大小写的子串过滤，term 为空时返回全部。
func Search(agents []Agent, term string) []Agent {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]Agent, 0, len(agents))
	for _, agent := range agents {
		if term == "" || strings.Contains(strings.ToLower(agent.Name), term) {
			out = append(out, agent)
		}
	}
	return out
}

func validateAgent(agent Agent) error {
	if strings.TrimSpace(agent.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "Agent ID 不能为空")
	}
	if strings.TrimSpace(agent.Name) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "Agent 名称不能为空", xerrors.WithMetadata("id", agent.ID))
	}
	return nil
}

func sortAgents(agents []Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Name == agents[j].Name {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].Name < agents[j].Name
	})
}
