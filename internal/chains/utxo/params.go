// Package utxo 实现比特币系 P2PKH 交易 (Bitcoin / BitcoinCash / Decred / Groestlcoin / Komodo / Zcash)
package utxo

import (
	"fmt"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/txcore"
)

const (
	// DefaultMaxTxBytes 标准交易大小上限
	DefaultMaxTxBytes = 100_000
	// DustLimit P2PKH 输出的粉尘阈值 (satoshi)
	DustLimit = 546
	// MaxFee 单笔交易手续费上限，同 Bitcoin Core 的 maxtxfee (0.1 BTC)
	MaxFee = 10_000_000
	// MaxMemoBytes OP_RETURN 数据上限
	MaxMemoBytes = 80
	// DefaultFeeRate 未指定费率时使用 1 sat/vbyte
	DefaultFeeRate = 1
)

type profile struct {
	chain      chain.Type
	version    []byte // P2PKH 地址版本前缀
	magic      string // 消息签名前缀
	txVersion  int32
	maxTxBytes int
}

type netParams struct {
	mainnet []byte
	testnet []byte
	magic   string
}

var params = map[chain.Type]netParams{
	chain.Bitcoin:     {mainnet: []byte{0x00}, testnet: []byte{0x6f}, magic: "Bitcoin Signed Message:\n"},
	chain.BitcoinCash: {mainnet: []byte{0x00}, testnet: []byte{0x6f}, magic: "Bitcoin Signed Message:\n"},
	chain.Decred:      {mainnet: []byte{0x07, 0x3f}, testnet: []byte{0x0f, 0x21}, magic: "Decred Signed Message:\n"},
	chain.Groestlcoin: {mainnet: []byte{0x24}, testnet: []byte{0x6f}, magic: "GroestlCoin Signed Message:\n"},
	chain.Komodo:      {mainnet: []byte{0x3c}, testnet: []byte{0x3c}, magic: "Komodo Signed Message:\n"},
	chain.Zcash:       {mainnet: []byte{0x1c, 0xb8}, testnet: []byte{0x1d, 0x25}, magic: "Zcash Signed Message:\n"},
}

// Chains 返回本包支持的链
func Chains() []chain.Type {
	return []chain.Type{chain.Bitcoin, chain.BitcoinCash, chain.Decred, chain.Groestlcoin, chain.Komodo, chain.Zcash}
}

// New 创建链模块，cc.Network 为 "testnet" 时使用测试网地址前缀
func New(t chain.Type, cc config.ChainConfig, limits config.LimitsConfig) (txcore.Module, error) {
	np, ok := params[t]
	if !ok {
		return nil, fmt.Errorf("utxo: unsupported chain %s", t)
	}
	p := &profile{chain: t, magic: np.magic, txVersion: 1, maxTxBytes: DefaultMaxTxBytes}
	switch cc.Network {
	case "", "mainnet":
		p.version = np.mainnet
	case "testnet":
		p.version = np.testnet
	default:
		return nil, fmt.Errorf("utxo: unknown network %q for %s", cc.Network, t)
	}
	if limits.MaxTxBytes > 0 {
		p.maxTxBytes = limits.MaxTxBytes
	}

	return txcore.Compose(t,
		&intentResolver{p: p},
		&builder{p: p},
		&signer{p: p},
		&messageSigner{p: p},
		&util{p: p},
	), nil
}
