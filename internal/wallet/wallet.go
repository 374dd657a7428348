package wallet

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "IRIS-Agents/internal/errors"
	"IRIS-Agents/internal/web3"
)

// Normalize 规范化提交者标识。十六进制地址统一为带 0x 前缀的小写形式，
// 其他标识去掉首尾空白后原样返回，空字符串表示匿名提交者。
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return trimmed
	}
	return strings.ToLower(common.HexToAddress(trimmed).Hex())
}

// ParseAddress 要求 raw 是合法的十六进制地址，用于需要访问链上数据的场景。
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "未连接钱包")
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "钱包地址格式不正确",
			xerrors.WithMetadata("wallet", trimmed))
	}
	return common.HexToAddress(trimmed), nil
}

// Snapshot 是钱包面板展示的数据。
type Snapshot struct {
	Address     string   `json:"address"`
	Chain       string   `json:"chain,omitempty"`
	ChainID     *big.Int `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	Balance     *big.Int `json:"balance"`
	Nonce       uint64   `json:"nonce"`
}

// Panel 通过链客户端读取已连接钱包的信息。
type Panel struct {
	client web3.Client
}

// NewPanel 创建钱包面板。
func NewPanel(client web3.Client) *Panel {
	return &Panel{client: client}
}

// Snapshot 查询地址所在链的链 ID、余额与交易计数。
func (p *Panel) Snapshot(ctx context.Context, address string) (Snapshot, error) {
	if p == nil || p.client == nil {
		return Snapshot{}, xerrors.New(xerrors.CodeInitializationFailure, "钱包面板未配置链客户端")
	}
	account, err := ParseAddress(address)
	if err != nil {
		return Snapshot{}, err
	}

	chain, err := p.client.FetchChainSnapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	balance, err := p.client.BalanceOf(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}
	nonce, err := p.client.NonceOf(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Address:     account.Hex(),
		Chain:       chain.Chain,
		ChainID:     chain.ChainID,
		BlockNumber: chain.BlockNumber,
		Balance:     balance,
		Nonce:       nonce,
	}, nil
}
