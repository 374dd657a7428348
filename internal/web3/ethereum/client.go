package ethereum

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/web3"
)

// Config 描述如何构造 EVM 兼容链的客户端。
type Config struct {
	Name   string
	RPCURL string
	Notes  string
}

// Backend 是客户端依赖的最小链访问能力，ethclient.Client 与模拟链均满足该接口。
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Client 为 EVM 链实现 web3.Client。
type Client struct {
	name    string
	notes   string
	rpc     *gethrpc.Client
	backend Backend

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient 连接 RPC 端点并返回客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接以太坊节点失败",
			xerrors.WithMetadata("chain", cfg.Name))
	}

	c := NewClientWithBackend(cfg, ethclient.NewClient(rpcClient))
	c.rpc = rpcClient
	return c, nil
}

// NewClientWithBackend 使用现成的后端构造客户端，测试中用于接入模拟链。
func NewClientWithBackend(cfg Config, backend Backend) *Client {
	return &Client{name: cfg.Name, notes: cfg.Notes, backend: backend}
}

// Close 释放底层连接。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if eth, ok := c.backend.(*ethclient.Client); ok {
		eth.Close()
	} else if c.rpc != nil {
		c.rpc.Close()
	}
	c.rpc = nil
	c.backend = nil
}

// FetchChainSnapshot 读取链 ID 与最新区块高度。
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	backend, err := c.current()
	if err != nil {
		return web3.ChainSnapshot{}, err
	}

	chainID, err := c.chainIDOf(ctx, backend)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	blockNumber, err := backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, c.wrap(err, "获取最新区块高度失败")
	}
	return web3.ChainSnapshot{
		Chain:       c.name,
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Notes:       c.notes,
	}, nil
}

// BalanceOf 返回账户在最新区块的余额（wei）。
func (c *Client) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	backend, err := c.current()
	if err != nil {
		return nil, err
	}
	balance, err := backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, c.wrap(err, "查询余额失败", xerrors.WithMetadata("account", account.Hex()))
	}
	return balance, nil
}

// NonceOf 返回账户的待处理交易计数。
func (c *Client) NonceOf(ctx context.Context, account common.Address) (uint64, error) {
	backend, err := c.current()
	if err != nil {
		return 0, err
	}
	nonce, err := backend.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, c.wrap(err, "查询交易计数失败", xerrors.WithMetadata("account", account.Hex()))
	}
	return nonce, nil
}

func (c *Client) current() (Backend, error) {
	if c == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未初始化的以太坊客户端")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "以太坊客户端已关闭",
			xerrors.WithMetadata("chain", c.name))
	}
	return c.backend, nil
}

// 链 ID 不会变化，首次查询后缓存。
func (c *Client) chainIDOf(ctx context.Context, backend Backend) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, c.wrap(err, "获取链 ID 失败")
	}
	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

func (c *Client) wrap(err error, message string, opts ...xerrors.Option) error {
	opts = append(opts, xerrors.WithMetadata("chain", c.name))
	return xerrors.Wrap(xerrors.CodeTransportFailure, err, message, opts...)
}

var _ web3.Client = (*Client)(nil)
