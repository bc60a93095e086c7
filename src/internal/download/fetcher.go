// Package download 按地址获取已部署合约的源码，供审计使用
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/admi-n/nullshot-auditor/src/internal"
)

var (
	// ErrNotContract 地址上没有部署代码
	ErrNotContract = errors.New("address has no contract code")
	// ErrUnverified 合约未开源，只有字节码
	ErrUnverified = errors.New("contract source is not verified")
)

// CodeReader 读取链上字节码，*ethclient.Client 实现了该接口
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// SourceLookup 查询已验证源码，*EtherscanClient 实现了该接口
type SourceLookup interface {
	GetContractSource(ctx context.Context, address string) (SourceInfo, bool, error)
}

// Fetcher 先检查链上是否有代码，再从 Etherscan 拉取源码
type Fetcher struct {
	sources SourceLookup
	chain   CodeReader // 可以为 nil，此时跳过链上检查
}

// NewFetcher 创建 Fetcher
func NewFetcher(sources SourceLookup, chain CodeReader) *Fetcher {
	return &Fetcher{sources: sources, chain: chain}
}

// Dial 连接以太坊 RPC 节点
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	return c, nil
}

// Fetch 返回地址对应的已验证源码
func (f *Fetcher) Fetch(ctx context.Context, address string) (*internal.Contract, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address %q", internal.ErrInvalidSubmission, address)
	}
	addr := common.HexToAddress(address)

	if f.chain != nil {
		code, err := f.chain.CodeAt(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("获取合约字节码失败 %s: %w", addr.Hex(), err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotContract, addr.Hex())
		}
	}

	info, verified, err := f.sources.GetContractSource(ctx, addr.Hex())
	if err != nil {
		return nil, fmt.Errorf("查询 Etherscan 失败 %s: %w", addr.Hex(), err)
	}
	if !verified {
		return nil, fmt.Errorf("%w: %s", ErrUnverified, addr.Hex())
	}
	if info.Proxy {
		slog.Info("contract is a proxy, auditing proxy source", "address", addr.Hex(), "implementation", info.Implementation)
	}

	return &internal.Contract{
		Name:    info.ContractName,
		Address: addr.Hex(),
		Code:    info.SourceCode,
	}, nil
}
