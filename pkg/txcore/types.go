package txcore

import (
	"encoding/hex"
	"math/big"

	"chain-core/pkg/chain"
	"chain-core/pkg/keys"
)

// Action 请求的操作类型
type Action string

const (
	ActionTransfer     Action = "transfer"
	ActionStake        Action = "stake"
	ActionContractCall Action = "contract_call"
)

// Recipient 请求中的收款方，Amount 为展示单位的十进制字符串 (如 "1.5" ETH)
type Recipient struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// FeePreference 手续费偏好，数值均为链的最小单位整数字符串
type FeePreference struct {
	Limit uint64 `json:"limit,omitempty"` // Gas Limit / Gas Budget
	Price string `json:"price,omitempty"` // Gas Price (Wei) / 费率 (sat/vbyte)
	Tip   string `json:"tip,omitempty"`   // EIP-1559 小费
}

// Request 调用方提交的通用请求
type Request struct {
	Action     Action        `json:"action"`
	From       string        `json:"from"`
	Recipients []Recipient   `json:"recipients"`
	Asset      string        `json:"asset,omitempty"`    // denom / 代币，空表示原生币
	Decimals   *int32        `json:"decimals,omitempty"` // 覆盖原生币精度
	Memo       string        `json:"memo,omitempty"`
	Fee        FeePreference `json:"fee"`
	Payload    []byte        `json:"payload,omitempty"` // 链特定的不透明数据 (例如合约 calldata)
}

// Output 归一化后的收款方，Amount 为最小单位
type Output struct {
	Address string
	Amount  *big.Int
}

// Fee 归一化后的手续费
type Fee struct {
	Limit uint64
	Price *big.Int // 可能为 nil
	Tip   *big.Int // 可能为 nil
}

// Intent 是经过链特定校验和归一化的请求。创建后不再修改。
type Intent struct {
	Chain   chain.Type
	Action  Action
	From    string
	Outputs []Output
	Asset   string
	Memo    string
	Fee     Fee
	Payload []byte
}

// UTXO 调用方提供的未花费输出
type UTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Amount uint64 `json:"amount"`
}

// ChainState 构建交易所需的链状态，由调用方查询后提供
type ChainState struct {
	ChainID       string `json:"chain_id,omitempty"`
	Sequence      uint64 `json:"sequence"` // nonce / sequence
	AccountNumber uint64 `json:"account_number,omitempty"`
	RecentBlock   []byte `json:"recent_block,omitempty"` // 最近区块哈希 / 引用
	Expiration    uint64 `json:"expiration,omitempty"`
	UTXOs         []UTXO `json:"utxos,omitempty"`
}

// UnsignedTransaction 链原生编码的未签名交易，不可变
type UnsignedTransaction struct {
	chain chain.Type
	raw   []byte
}

// NewUnsignedTransaction 拷贝 raw 构造未签名交易
func NewUnsignedTransaction(c chain.Type, raw []byte) *UnsignedTransaction {
	return &UnsignedTransaction{chain: c, raw: clone(raw)}
}

func (u *UnsignedTransaction) Chain() chain.Type { return u.chain }

// Bytes 返回规范编码的拷贝
func (u *UnsignedTransaction) Bytes() []byte { return clone(u.raw) }

// Domain 签名所属的域，交易签名与离线消息签名绝不可互换
type Domain uint8

const (
	DomainTransaction Domain = iota + 1
	DomainMessage
)

func (d Domain) String() string {
	switch d {
	case DomainTransaction:
		return "transaction"
	case DomainMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Signature 签名结果
type Signature struct {
	Domain    Domain
	Scheme    keys.Scheme
	PublicKey []byte
	Bytes     []byte
	Index     int // UTXO 链的输入序号，其他链为 0
}

// SignedTransaction 可直接交给外部广播器的已签名交易
type SignedTransaction struct {
	chain      chain.Type
	raw        []byte
	hash       []byte
	signatures []Signature
}

// NewSignedTransaction 构造已签名交易
func NewSignedTransaction(c chain.Type, raw, hash []byte, sigs []Signature) *SignedTransaction {
	out := make([]Signature, len(sigs))
	copy(out, sigs)
	return &SignedTransaction{chain: c, raw: clone(raw), hash: clone(hash), signatures: out}
}

func (s *SignedTransaction) Chain() chain.Type { return s.chain }

// Bytes 返回可广播的原生编码
func (s *SignedTransaction) Bytes() []byte { return clone(s.raw) }

// Hash 返回交易哈希 (链上标识)
func (s *SignedTransaction) Hash() []byte { return clone(s.hash) }

// HashHex 以 Hex 形式返回交易哈希
func (s *SignedTransaction) HashHex() string { return hex.EncodeToString(s.hash) }

// Signatures 返回签名列表的拷贝
func (s *SignedTransaction) Signatures() []Signature {
	out := make([]Signature, len(s.signatures))
	copy(out, s.signatures)
	return out
}

// SignedMessage 离线消息签名结果
type SignedMessage struct {
	Chain     chain.Type
	Message   []byte
	Signature Signature
	Encoded   string // 链惯用的签名文本形式 (0x hex / base64 / ...)
}

// Decoded 是交易的可检查视图
type Decoded struct {
	Chain      chain.Type
	Signed     bool
	Unsigned   *UnsignedTransaction // 签名覆盖的规范内容
	From       string
	Outputs    []Output
	Fee        *big.Int
	Sequence   uint64
	Memo       string
	Fields     map[string]string
	Signatures []Signature
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
