package txcore

import (
	"chain-core/pkg/chain"
	"chain-core/pkg/keys"
)

// IntentResolver 校验通用请求并归一化为 Intent。纯函数，无 I/O。
type IntentResolver interface {
	ResolveIntent(req *Request) (*Intent, error)
}

// TxBuilder 将 Intent 与链状态确定性地编码为未签名交易。
// 相同输入必须得到逐字节相同的输出。
type TxBuilder interface {
	BuildTx(intent *Intent, state *ChainState) (*UnsignedTransaction, error)
}

// TxSigner 对未签名交易的规范字节签名并序列化。
// 使用与消息签名不同的域。
type TxSigner interface {
	SignTx(tx *UnsignedTransaction, key *keys.Material) (*SignedTransaction, error)
}

// MessageSigner 使用链定义的消息域对任意离线数据签名
type MessageSigner interface {
	SignMessage(message []byte, key *keys.Material) (*SignedMessage, error)
	VerifyMessage(message []byte, sig *Signature) error
}

// TxUtil 交易辅助工具，不修改输入，不访问网络
type TxUtil interface {
	// TxHash 返回已签名交易的链上哈希；对未签名输入返回其规范字节的摘要
	TxHash(raw []byte) ([]byte, error)
	// Decode 解析已签名或未签名交易
	Decode(raw []byte) (*Decoded, error)
	// DecodeUnsigned 解析未签名交易，要求输入为规范编码
	DecodeUnsigned(raw []byte) (*UnsignedTransaction, error)
	// Validate 广播前的轻量检查 (大小、字段范围)
	Validate(raw []byte) error
	// VerifyTx 以交易域校验 payload (未签名交易的规范字节) 上的签名
	VerifyTx(payload []byte, sig *Signature) error
}

// Module 是每条链必须提供的统一能力集
type Module interface {
	Chain() chain.Type
	Intent() IntentResolver
	Builder() TxBuilder
	Signer() TxSigner
	MessageSigner() MessageSigner
	Util() TxUtil
}

type composed struct {
	chain   chain.Type
	intent  IntentResolver
	builder TxBuilder
	signer  TxSigner
	message MessageSigner
	util    TxUtil
}

// Compose 将五种能力组装为 Module
func Compose(c chain.Type, intent IntentResolver, builder TxBuilder, signer TxSigner, message MessageSigner, util TxUtil) Module {
	return &composed{
		chain:   c,
		intent:  intent,
		builder: builder,
		signer:  signer,
		message: message,
		util:    util,
	}
}

func (m *composed) Chain() chain.Type             { return m.chain }
func (m *composed) Intent() IntentResolver        { return m.intent }
func (m *composed) Builder() TxBuilder            { return m.builder }
func (m *composed) Signer() TxSigner              { return m.signer }
func (m *composed) MessageSigner() MessageSigner  { return m.message }
func (m *composed) Util() TxUtil                  { return m.util }
