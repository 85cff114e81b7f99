package chain

import (
	"strings"
)

// Type 标识一条区块链的实现类型。
// 外部编码就是名字本身 (例如 "Bitcoin")，因此新增链只需追加一个值，不会影响已有值的编码。
type Type string

// Unsupported 是无法识别的链标签的哨兵值，永远不会对应任何链模块。
const Unsupported Type = "Unsupported"

// 新增区块链时在此追加，并同步更新 all。
// 该列表由外部生成工具维护，保持字母序。
const (
	Aptos            Type = "Aptos"
	Binance          Type = "Binance"
	Bitcoin          Type = "Bitcoin"
	BitcoinCash      Type = "BitcoinCash"
	Cosmos           Type = "Cosmos"
	Decred           Type = "Decred"
	Ethereum         Type = "Ethereum"
	Greenfield       Type = "Greenfield"
	Groestlcoin      Type = "Groestlcoin"
	InternetComputer Type = "InternetComputer"
	Komodo           Type = "Komodo"
	Kusama           Type = "Kusama"
	NativeEvmos      Type = "NativeEvmos"
	NativeInjective  Type = "NativeInjective"
	Pactus           Type = "Pactus"
	Polkadot         Type = "Polkadot"
	Polymesh         Type = "Polymesh"
	Ripple           Type = "Ripple"
	Ronin            Type = "Ronin"
	Solana           Type = "Solana"
	Sui              Type = "Sui"
	TheOpenNetwork   Type = "TheOpenNetwork"
	Thorchain        Type = "Thorchain"
	Zcash            Type = "Zcash"
)

// all 是受支持链的唯一权威列表
var all = [...]Type{
	Aptos,
	Binance,
	Bitcoin,
	BitcoinCash,
	Cosmos,
	Decred,
	Ethereum,
	Greenfield,
	Groestlcoin,
	InternetComputer,
	Komodo,
	Kusama,
	NativeEvmos,
	NativeInjective,
	Pactus,
	Polkadot,
	Polymesh,
	Ripple,
	Ronin,
	Solana,
	Sui,
	TheOpenNetwork,
	Thorchain,
	Zcash,
}

// byKey 在包初始化时由 all 构建，之后只读
var byKey = func() map[string]Type {
	m := make(map[string]Type, len(all))
	for _, t := range all {
		m[normalize(string(t))] = t
	}
	return m
}()

// All 返回所有受支持链的副本 (不含 Unsupported)
func All() []Type {
	out := make([]Type, len(all))
	copy(out, all[:])
	return out
}

// Resolve 将外部的链标签解析为 Type。
// 该函数永远不会失败：无法识别的标签统一映射为 Unsupported，
// 以保证旧版本注册表读取到新链数据时依然可以前向兼容。
func Resolve(tag string) Type {
	if t, ok := byKey[normalize(tag)]; ok {
		return t
	}
	return Unsupported
}

// IsSupported 返回该链是否可被分发。除 Unsupported 与列表外的值以外均为 true。
func (t Type) IsSupported() bool {
	known, ok := byKey[normalize(string(t))]
	return ok && known == t
}

// IsSupported 是 Type.IsSupported 的函数形式
func IsSupported(t Type) bool {
	return t.IsSupported()
}

func (t Type) String() string {
	if t == "" {
		return string(Unsupported)
	}
	return string(t)
}

// MarshalText 输出规范名称
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText 永远不返回错误，未知名称解码为 Unsupported
func (t *Type) UnmarshalText(text []byte) error {
	*t = Resolve(string(text))
	return nil
}

// normalize 忽略大小写以及 '-', '_', 空格 分隔符
func normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	var sb strings.Builder
	sb.Grow(len(tag))
	for _, r := range tag {
		switch r {
		case '-', '_', ' ':
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}
