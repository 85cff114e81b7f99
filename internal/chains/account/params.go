// Package account 实现账户模型链 (Aptos / InternetComputer / Kusama / Pactus / Polkadot /
// Polymesh / Ripple / Solana / Sui / TheOpenNetwork) 的交易构建与签名。
// 所有链共享同一个 BCS 编码的交易体，差异在于地址格式、签名曲线和签名域。
package account

import (
	"fmt"
	"strings"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

const (
	// DefaultMaxTxBytes 默认交易大小上限
	DefaultMaxTxBytes = 64 * 1024
	// SolanaMaxTxBytes Solana 单个数据包的大小上限
	SolanaMaxTxBytes = 1232
	// MaxMemoBytes memo 最大字节数
	MaxMemoBytes = 256
)

// sigText 签名的文本形式
type sigText int

const (
	textHex0x sigText = iota
	textHex
	textHexUpper
	textBase58
	textBase64
	textSuiBase64 // flag || sig || pub
)

type profile struct {
	chain        chain.Type
	scheme       keys.Scheme
	codec        addrCodec
	decimals     int32
	chainID      string
	defaultLimit uint64
	defaultPrice string
	memo         bool
	asset        bool
	staking      bool
	contracts    bool
	maxOutputs   int
	needsRef     bool // 需要最近区块哈希 / genesis 哈希
	needsExpiry  bool
	derSig       bool // secp256k1 签名使用 DER 编码
	text         sigText
	maxTxBytes   int

	hash     func(data ...[]byte) []byte
	txInput  func(raw []byte) []byte
	msgInput func(msg []byte) ([]byte, error)
	txID     func(unsigned, signed, sig []byte) []byte
}

var defaults = map[chain.Type]profile{
	chain.Aptos: {
		scheme: keys.SchemeEd25519, codec: aptosCodec, decimals: 8, chainID: "1",
		defaultLimit: 2000, defaultPrice: "100",
		asset: true, staking: true, contracts: true, maxOutputs: 1, needsExpiry: true,
		text: textHex0x, hash: sha3Hash, txInput: aptosTxInput, msgInput: aptosMsgInput, txID: aptosTxID,
	},
	chain.InternetComputer: {
		scheme: keys.SchemeSecp256k1, codec: icpCodec{}, decimals: 8, chainID: "ryjl3-tyaaa-aaaaa-aaaba-cai",
		defaultPrice: "10000",
		memo: true, contracts: true, maxOutputs: 1, needsExpiry: true,
		text: textHex, hash: sha256Hash, txInput: icpTxInput, msgInput: icpMsgInput, txID: hashSigned(sha256Hash),
	},
	chain.Kusama: {
		scheme: keys.SchemeEd25519, codec: ss58Codec{prefix: 2}, decimals: 12,
		chainID: "b0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe",
		defaultPrice: "0",
		memo: true, staking: true, maxOutputs: 1, needsRef: true,
		text: textHex0x, hash: blake2bHash, txInput: substrateTxInput, msgInput: substrateMsgInput, txID: hashSigned(blake2bHash),
	},
	chain.Pactus: {
		scheme: keys.SchemeEd25519, codec: pactusCodec{}, decimals: 9, chainID: "mainnet",
		defaultPrice: "10000000",
		memo: true, staking: true, maxOutputs: 1,
		text: textHex, hash: blake2bHash, txInput: pactusTxInput, msgInput: pactusMsgInput, txID: hashSigned(blake2bHash),
	},
	chain.Polkadot: {
		scheme: keys.SchemeEd25519, codec: ss58Codec{prefix: 0}, decimals: 10,
		chainID: "91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
		defaultPrice: "0",
		memo: true, staking: true, maxOutputs: 1, needsRef: true,
		text: textHex0x, hash: blake2bHash, txInput: substrateTxInput, msgInput: substrateMsgInput, txID: hashSigned(blake2bHash),
	},
	chain.Polymesh: {
		scheme: keys.SchemeEd25519, codec: ss58Codec{prefix: 12}, decimals: 6,
		chainID: "6fbd74e5e1d0a61d52ccfe9d4adaed16dd3a7caa37c6bc4d0c2fa12e8b2f4063",
		defaultPrice: "0",
		memo: true, asset: true, staking: true, maxOutputs: 1, needsRef: true,
		text: textHex0x, hash: blake2bHash, txInput: substrateTxInput, msgInput: substrateMsgInput, txID: hashSigned(blake2bHash),
	},
	chain.Ripple: {
		scheme: keys.SchemeSecp256k1, codec: rippleCodec{}, decimals: 6, chainID: "0",
		defaultPrice: "12",
		memo: true, maxOutputs: 1, derSig: true,
		text: textHexUpper, hash: sha512HalfHash, txInput: rippleTxInput, msgInput: rippleMsgInput, txID: rippleTxID,
	},
	chain.Solana: {
		scheme: keys.SchemeEd25519, codec: solanaCodec{}, decimals: 9, chainID: "mainnet-beta",
		defaultLimit: 200_000, defaultPrice: "0",
		memo: true, asset: true, staking: true, contracts: true, maxOutputs: 8, needsRef: true,
		text: textBase58, hash: sha256Hash, txInput: solanaTxInput, msgInput: solanaMsgInput, txID: solanaTxID,
	},
	chain.Sui: {
		scheme: keys.SchemeEd25519, codec: suiCodec, decimals: 9, chainID: "35834a8a",
		defaultLimit: 10_000, defaultPrice: "1000",
		asset: true, staking: true, contracts: true, maxOutputs: 16,
		text: textSuiBase64, hash: blake2bHash, txInput: suiTxInput, msgInput: suiMsgInput, txID: suiTxID,
	},
	chain.TheOpenNetwork: {
		scheme: keys.SchemeEd25519, codec: tonCodec{}, decimals: 9, chainID: "-239",
		defaultPrice: "10000000",
		memo: true, asset: true, contracts: true, maxOutputs: 4, needsExpiry: true,
		text: textBase64, hash: sha256Hash, txInput: tonTxInput, msgInput: tonMsgInput, txID: hashSigned(sha256Hash),
	},
}

// Chains 返回本包支持的链
func Chains() []chain.Type {
	return []chain.Type{
		chain.Aptos, chain.InternetComputer, chain.Kusama, chain.Pactus, chain.Polkadot,
		chain.Polymesh, chain.Ripple, chain.Solana, chain.Sui, chain.TheOpenNetwork,
	}
}

// New 创建链模块，cc.ChainID 覆盖默认的网络标识
func New(t chain.Type, cc config.ChainConfig, limits config.LimitsConfig) (txcore.Module, error) {
	p, ok := defaults[t]
	if !ok {
		return nil, fmt.Errorf("account: unsupported chain %s", t)
	}
	p.chain = t
	if id := strings.TrimSpace(cc.ChainID); id != "" {
		p.chainID = id
	}
	p.maxTxBytes = DefaultMaxTxBytes
	if t == chain.Solana {
		p.maxTxBytes = SolanaMaxTxBytes
	}
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

func (p *profile) actions() []txcore.Action {
	out := []txcore.Action{txcore.ActionTransfer}
	if p.staking {
		out = append(out, txcore.ActionStake)
	}
	if p.contracts {
		out = append(out, txcore.ActionContractCall)
	}
	return out
}
