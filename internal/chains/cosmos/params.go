// Package cosmos 实现 Cosmos SDK 系链 (Cosmos / Binance / Greenfield / Evmos / Injective / Thorchain)
// 的 amino JSON 交易构建与 secp256k1 签名
package cosmos

import (
	"fmt"
	"strings"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/txcore"
)

const (
	// DefaultMaxTxBytes 默认交易大小上限
	DefaultMaxTxBytes = 1024 * 1024
	// MaxMemoChars memo 最大字符数
	MaxMemoChars = 256
	// DefaultGas 未指定 gas limit 时使用
	DefaultGas = 200_000
	// MaxMsgs 单笔交易最多包含的消息数
	MaxMsgs = 16
)

// digestKind 签名摘要算法
type digestKind int

const (
	digestSHA256    digestKind = iota
	digestKeccak256            // ethermint 系 (ethsecp256k1)
)

// addrStyle 地址格式
type addrStyle int

const (
	addrBech32Hash160 addrStyle = iota // bech32(ripemd160(sha256(compressed)))
	addrBech32Keccak                   // bech32(keccak(uncompressed)[12:])
	addrHex                            // 0x + keccak(uncompressed)[12:]
)

type profile struct {
	chain      chain.Type
	hrp        string
	style      addrStyle
	digest     digestKind
	denom      string
	decimals   int32
	chainID    string
	defaultFee string // 未指定手续费时使用的费用总额 (最小单位)
	msgPrefix  string // amino 消息类型前缀
	staking    bool
	maxTxBytes int
}

var defaults = map[chain.Type]profile{
	chain.Cosmos: {
		hrp: "cosmos", style: addrBech32Hash160, digest: digestSHA256,
		denom: "uatom", decimals: 6, chainID: "cosmoshub-4", defaultFee: "5000",
		msgPrefix: "cosmos-sdk", staking: true,
	},
	chain.Binance: {
		hrp: "bnb", style: addrBech32Hash160, digest: digestSHA256,
		denom: "BNB", decimals: 8, chainID: "Binance-Chain-Tigris", defaultFee: "7500",
		msgPrefix: "cosmos-sdk",
	},
	chain.Greenfield: {
		style: addrHex, digest: digestKeccak256,
		denom: "BNB", decimals: 18, chainID: "greenfield_1017-1", defaultFee: "6000000000000",
		msgPrefix: "cosmos-sdk",
	},
	chain.NativeEvmos: {
		hrp: "evmos", style: addrBech32Keccak, digest: digestKeccak256,
		denom: "aevmos", decimals: 18, chainID: "evmos_9001-2", defaultFee: "4000000000000000",
		msgPrefix: "cosmos-sdk", staking: true,
	},
	chain.NativeInjective: {
		hrp: "inj", style: addrBech32Keccak, digest: digestKeccak256,
		denom: "inj", decimals: 18, chainID: "injective-1", defaultFee: "100000000000000",
		msgPrefix: "cosmos-sdk", staking: true,
	},
	chain.Thorchain: {
		hrp: "thor", style: addrBech32Hash160, digest: digestSHA256,
		denom: "rune", decimals: 8, chainID: "thorchain-1", defaultFee: "2000000",
		msgPrefix: "thorchain",
	},
}

// Chains 返回本包支持的链
func Chains() []chain.Type {
	return []chain.Type{chain.Binance, chain.Cosmos, chain.Greenfield, chain.NativeEvmos, chain.NativeInjective, chain.Thorchain}
}

// New 创建链模块，cc.ChainID 覆盖默认 chain id
func New(t chain.Type, cc config.ChainConfig, limits config.LimitsConfig) (txcore.Module, error) {
	p, ok := defaults[t]
	if !ok {
		return nil, fmt.Errorf("cosmos: unsupported chain %s", t)
	}
	p.chain = t
	if id := strings.TrimSpace(cc.ChainID); id != "" {
		p.chainID = id
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
