// Package evm 实现以太坊系 (Ethereum / Ronin) 的交易构建与签名
package evm

import (
	"fmt"
	"math/big"
	"strings"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/txcore"
)

// DefaultMaxTxBytes 交易池接受的最大交易大小 (128 KiB)
const DefaultMaxTxBytes = 128 * 1024

// MaxGas 单笔交易的 gas 上限
const MaxGas = 30_000_000

type profile struct {
	chain      chain.Type
	chainID    *big.Int
	addrPrefix string // Ronin 使用 "ronin:"，以太坊使用 "0x"
	maxTxBytes int
}

var defaults = map[chain.Type]profile{
	chain.Ethereum: {chain: chain.Ethereum, chainID: big.NewInt(1), addrPrefix: "0x"},
	chain.Ronin:    {chain: chain.Ronin, chainID: big.NewInt(2020), addrPrefix: "ronin:"},
}

// Chains 返回本包支持的链
func Chains() []chain.Type {
	return []chain.Type{chain.Ethereum, chain.Ronin}
}

// New 创建链模块，cc.ChainID 可覆盖默认链 ID
func New(t chain.Type, cc config.ChainConfig, limits config.LimitsConfig) (txcore.Module, error) {
	p, ok := defaults[t]
	if !ok {
		return nil, fmt.Errorf("evm: unsupported chain %s", t)
	}
	p.chainID = new(big.Int).Set(p.chainID)
	if id := strings.TrimSpace(cc.ChainID); id != "" {
		v, ok := new(big.Int).SetString(id, 10)
		if !ok || v.Sign() <= 0 {
			return nil, fmt.Errorf("evm: invalid chain id %q for %s", cc.ChainID, t)
		}
		p.chainID = v
	}
	p.maxTxBytes = DefaultMaxTxBytes
	if limits.MaxTxBytes > 0 {
		p.maxTxBytes = limits.MaxTxBytes
	}

	pp := &p
	return txcore.Compose(t,
		&intentResolver{p: pp},
		&builder{p: pp},
		&signer{p: pp},
		&messageSigner{p: pp},
		&util{p: pp},
	), nil
}
