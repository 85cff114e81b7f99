package account

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/aptos-labs/serde-reflection/serde-generate/runtime/golang/bcs"
	"github.com/aptos-labs/serde-reflection/serde-generate/runtime/golang/serde"

	"chain-core/pkg/txcore"
)

var (
	errEmpty        = errors.New("empty input")
	errNonCanonical = errors.New("non-canonical encoding")
	errTrailing     = errors.New("trailing bytes after transaction")
	errEnvelope     = errors.New("unknown envelope variant")
	errAction       = errors.New("unknown action variant")
	errLength       = errors.New("length prefix exceeds remaining input")
)

// 信封变体: 未签名交易与已签名交易共享同一个 BCS 枚举
const (
	envelopeUnsigned uint32 = 0
	envelopeSigned   uint32 = 1
)

var actions = []txcore.Action{txcore.ActionTransfer, txcore.ActionStake, txcore.ActionContractCall}

func actionIndex(a txcore.Action) (uint32, bool) {
	for i, v := range actions {
		if v == a {
			return uint32(i), true
		}
	}
	return 0, false
}

type output struct {
	Address []byte
	Amount  *big.Int
}

// body 是账户模型链的通用交易体
type body struct {
	Action     txcore.Action
	ChainID    string
	Sender     []byte
	Sequence   uint64
	Reference  []byte // 最近区块哈希 / genesis 哈希
	Expiration uint64
	Outputs    []output
	Asset      string
	FeeLimit   uint64
	FeePrice   *big.Int
	Memo       string
	Payload    []byte
}

// envelope 已签名交易
type envelope struct {
	Unsigned  []byte // 完整的未签名编码 (含信封标签)
	PublicKey []byte
	Signature []byte
}

func toUint128(v *big.Int) serde.Uint128 {
	if v == nil {
		return serde.Uint128{}
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	return serde.Uint128{
		High: new(big.Int).Rsh(v, 64).Uint64(),
		Low:  new(big.Int).And(v, mask).Uint64(),
	}
}

func fromUint128(u serde.Uint128) *big.Int {
	v := new(big.Int).SetUint64(u.High)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Low))
}

// writer 记录第一个错误，避免每个字段都判断
type writer struct {
	s   serde.Serializer
	err error
}

func newWriter() *writer {
	return &writer{s: bcs.NewSerializer()}
}

func (w *writer) variant(v uint32) {
	if w.err == nil {
		w.err = w.s.SerializeVariantIndex(v)
	}
}

func (w *writer) u64(v uint64) {
	if w.err == nil {
		w.err = w.s.SerializeU64(v)
	}
}

func (w *writer) u128(v *big.Int) {
	if w.err == nil {
		w.err = w.s.SerializeU128(toUint128(v))
	}
}

func (w *writer) str(v string) {
	if w.err == nil {
		w.err = w.s.SerializeStr(v)
	}
}

func (w *writer) bytes(v []byte) {
	if w.err == nil {
		w.err = w.s.SerializeBytes(v)
	}
}

func (w *writer) length(n int) {
	if w.err == nil {
		w.err = w.s.SerializeLen(uint64(n))
	}
}

func (w *writer) result() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.s.GetBytes(), nil
}

type reader struct {
	d   serde.Deserializer
	raw []byte
	err error
}

func newReader(raw []byte) *reader {
	return &reader{d: bcs.NewDeserializer(raw), raw: raw}
}

// checkLen 在分配之前确认下一个长度前缀不超过剩余字节数
func (r *reader) checkLen() {
	if r.err != nil {
		return
	}
	off := int(r.d.GetBufferOffset())
	peek := bcs.NewDeserializer(r.raw[off:])
	n, err := peek.DeserializeLen()
	if err != nil {
		r.err = err
		return
	}
	if n > uint64(len(r.raw)-off-int(peek.GetBufferOffset())) {
		r.err = errLength
	}
}

func (r *reader) variant() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.DeserializeVariantIndex()
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.DeserializeU64()
	r.err = err
	return v
}

func (r *reader) u128() *big.Int {
	if r.err != nil {
		return nil
	}
	v, err := r.d.DeserializeU128()
	r.err = err
	return fromUint128(v)
}

func (r *reader) str() string {
	if r.checkLen(); r.err != nil {
		return ""
	}
	v, err := r.d.DeserializeStr()
	r.err = err
	return v
}

func (r *reader) bytes() []byte {
	if r.checkLen(); r.err != nil {
		return nil
	}
	v, err := r.d.DeserializeBytes()
	r.err = err
	return v
}

func (r *reader) length() int {
	if r.err != nil {
		return 0
	}
	v, err := r.d.DeserializeLen()
	r.err = err
	return int(v)
}

func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.d.GetBufferOffset() != uint64(len(r.raw)) {
		return errTrailing
	}
	return nil
}

func (b *body) encode() ([]byte, error) {
	idx, ok := actionIndex(b.Action)
	if !ok {
		return nil, errAction
	}
	w := newWriter()
	w.variant(envelopeUnsigned)
	w.variant(idx)
	w.str(b.ChainID)
	w.bytes(b.Sender)
	w.u64(b.Sequence)
	w.bytes(b.Reference)
	w.u64(b.Expiration)
	w.length(len(b.Outputs))
	for _, out := range b.Outputs {
		w.bytes(out.Address)
		w.u128(out.Amount)
	}
	w.str(b.Asset)
	w.u64(b.FeeLimit)
	w.u128(b.FeePrice)
	w.str(b.Memo)
	w.bytes(b.Payload)
	return w.result()
}

// decodeBody 解析未签名编码，要求规范且无多余字节
func decodeBody(raw []byte) (*body, error) {
	if len(raw) == 0 {
		return nil, errEmpty
	}
	r := newReader(raw)
	if v := r.variant(); r.err == nil && v != envelopeUnsigned {
		return nil, errEnvelope
	}
	idx := r.variant()
	if r.err == nil && int(idx) >= len(actions) {
		return nil, errAction
	}

	b := &body{}
	b.ChainID = r.str()
	b.Sender = r.bytes()
	b.Sequence = r.u64()
	b.Reference = r.bytes()
	b.Expiration = r.u64()
	n := r.length()
	if r.err == nil && n > len(raw) {
		return nil, errNonCanonical
	}
	for i := 0; i < n && r.err == nil; i++ {
		b.Outputs = append(b.Outputs, output{Address: r.bytes(), Amount: r.u128()})
	}
	b.Asset = r.str()
	b.FeeLimit = r.u64()
	b.FeePrice = r.u128()
	b.Memo = r.str()
	b.Payload = r.bytes()
	if err := r.done(); err != nil {
		return nil, err
	}
	b.Action = actions[idx]

	again, err := b.encode()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, errNonCanonical
	}
	return b, nil
}

func (e *envelope) encode() ([]byte, error) {
	w := newWriter()
	w.variant(envelopeSigned)
	w.bytes(e.Unsigned)
	w.bytes(e.PublicKey)
	w.bytes(e.Signature)
	return w.result()
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	if len(raw) == 0 {
		return nil, errEmpty
	}
	r := newReader(raw)
	if v := r.variant(); r.err == nil && v != envelopeSigned {
		return nil, errEnvelope
	}
	e := &envelope{Unsigned: r.bytes(), PublicKey: r.bytes(), Signature: r.bytes()}
	if err := r.done(); err != nil {
		return nil, err
	}
	again, err := e.encode()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, errNonCanonical
	}
	return e, nil
}

// isSigned 第一个 ULEB128 变体标签为 1
func isSigned(raw []byte) bool {
	return len(raw) > 0 && raw[0] == byte(envelopeSigned)
}
