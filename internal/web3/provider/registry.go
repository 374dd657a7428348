package provider

import (
	"context"
	"sort"
	"strings"

	"IRIS-Agents/internal/config"
	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/web3"
	"IRIS-Agents/internal/web3/ethereum"
)

// Registry 按名称管理多条链的客户端。
type Registry struct {
	defaultChain string
	clients      map[string]web3.Client
}

// NewRegistry 读取链定义并实例化客户端。未提供链定义时回落到 rpc_url。
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]web3.Client)
	for name, chain := range defs.Chains {
		chainType := strings.ToLower(strings.TrimSpace(chain.Type))
		if chainType == "" {
			chainType = "evm"
		}
		if chainType != "evm" {
			closeClients(clients)
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的链类型",
				xerrors.WithMetadata("chain", name), xerrors.WithMetadata("type", chain.Type))
		}
		client, err := ethereum.NewClient(ctx, ethereum.Config{
			Name:   name,
			RPCURL: chain.RPCURL,
			Notes:  chain.Description,
		})
		if err != nil {
			closeClients(clients)
			return nil, err
		}
		clients[name] = client
	}

	defaultChain := strings.TrimSpace(cfg.DefaultChain)
	if len(clients) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{Name: "default", RPCURL: cfg.RPCURL})
		if err != nil {
			return nil, err
		}
		clients["default"] = client
		if defaultChain == "" {
			defaultChain = "default"
		}
	}

	return NewRegistryWithClients(defaultChain, clients)
}

// NewRegistryWithClients 使用已构造的客户端创建注册表。defaultChain 为空时取名称排序后的第一条链。
func NewRegistryWithClients(defaultChain string, clients map[string]web3.Client) (*Registry, error) {
	if len(clients) == 0 {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置任何链的 RPC 端点")
	}
	r := &Registry{clients: clients}
	if defaultChain == "" {
		defaultChain = r.Chains()[0]
	}
	if _, ok := clients[defaultChain]; !ok {
		closeClients(clients)
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "默认链未在配置中找到",
			xerrors.WithMetadata("chain", defaultChain))
	}
	r.defaultChain = defaultChain
	return r, nil
}

// DefaultChain 返回默认链名称。
func (r *Registry) DefaultChain() string {
	if r == nil {
		return ""
	}
	return r.defaultChain
}

// DefaultClient 返回默认链的客户端。
func (r *Registry) DefaultClient() (web3.Client, error) {
	if r == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未初始化的链客户端注册表")
	}
	client, ok := r.clients[r.defaultChain]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "默认链未在注册表中",
			xerrors.WithMetadata("chain", r.defaultChain))
	}
	return client, nil
}

// Client 按名称返回客户端，名称为空时返回默认链。
func (r *Registry) Client(name string) (web3.Client, bool) {
	if r == nil {
		return nil, false
	}
	if name == "" {
		name = r.defaultChain
	}
	client, ok := r.clients[name]
	return client, ok
}

// Chains 返回排序后的链名称。
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有客户端。
func (r *Registry) Close() {
	if r == nil {
		return
	}
	closeClients(r.clients)
}

func closeClients(clients map[string]web3.Client) {
	for name, client := range clients {
		if client != nil {
			client.Close()
		}
		delete(clients, name)
	}
}
