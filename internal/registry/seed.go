package registry

import (
	"context"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "IRIS-Agents/internal/errors"
)

type seedFile struct {
	Agents []Agent `yaml:"agents"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// LoadSeed 读取 YAML 格式的初始 Agent 列表。缺少 id 时优先使用链上地址，
// 否则由名称生成。
func LoadSeed(path string) ([]Agent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取 Agent 种子文件失败", xerrors.WithMetadata("path", path))
	}
	return ParseSeed(content)
}

// ParseSeed 解析种子内容。
func ParseSeed(content []byte) ([]Agent, error) {
	var file seedFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析 Agent 种子文件失败")
	}

	seen := make(map[string]struct{}, len(file.Agents))
	agents := make([]Agent, 0, len(file.Agents))
	for _, agent := range file.Agents {
		agent.Name = strings.TrimSpace(agent.Name)
		agent.Address = strings.TrimSpace(agent.Address)
		if agent.ID == "" {
			agent.ID = agent.Address
		}
		if agent.ID == "" {
			agent.ID = strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(agent.Name), "-"), "-")
		}
		if err := validateAgent(agent); err != nil {
			return nil, err
		}
		if _, dup := seen[agent.ID]; dup {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "Agent ID 重复", xerrors.WithMetadata("id", agent.ID))
		}
		seen[agent.ID] = struct{}{}
		agents = append(agents, agent)
	}
	return agents, nil
}

// Seed 将 agents 写入注册表。
func Seed(ctx context.Context, w Writer, agents []Agent) error {
	for _, agent := range agents {
		if err := w.Put(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}
