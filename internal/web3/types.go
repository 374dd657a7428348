package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainSnapshot 汇总一条链的基础信息，供钱包面板展示。
type ChainSnapshot struct {
	Chain       string
	ChainID     *big.Int
	BlockNumber uint64
	Notes       string
}

// ChainIDHex 以 0x 前缀的十六进制返回链 ID。
func (s ChainSnapshot) ChainIDHex() string {
	return HexBig(s.ChainID)
}

// Client 定义钱包面板使用的只读链访问接口。
type Client interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	NonceOf(ctx context.Context, account common.Address) (uint64, error)
	Close()
}

// HexBig 将大整数编码为 0x 前缀的十六进制字符串，nil 视为 0。
func HexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
