package cosmos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"chain-core/pkg/crypto_util"
)

var (
	errEmpty        = errors.New("empty input")
	errNonCanonical = errors.New("non-canonical sign doc")
	errUnknownMsg   = errors.New("unknown message type")
)

// 以下结构字段按字母顺序声明，json.Marshal 的输出即为排序后的 amino JSON

type coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

type stdFee struct {
	Amount []coin `json:"amount"`
	Gas    string `json:"gas"`
}

type aminoMsg struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type signDoc struct {
	AccountNumber string     `json:"account_number"`
	ChainID       string     `json:"chain_id"`
	Fee           stdFee     `json:"fee"`
	Memo          string     `json:"memo"`
	Msgs          []aminoMsg `json:"msgs"`
	Sequence      string     `json:"sequence"`
}

type msgSend struct {
	Amount      []coin `json:"amount"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
}

type msgDelegate struct {
	Amount           coin   `json:"amount"`
	DelegatorAddress string `json:"delegator_address"`
	ValidatorAddress string `json:"validator_address"`
}

// msgSignData ADR-036 离线签名消息
type msgSignData struct {
	Data   []byte `json:"data"`
	Signer string `json:"signer"`
}

type txSignature struct {
	PubKey    []byte `json:"pub_key"`
	Signature []byte `json:"signature"`
}

// signedTx 是已签名交易的序列化形式，sign_doc 保留签名时的原始字节
type signedTx struct {
	SignDoc    json.RawMessage `json:"sign_doc"`
	Signatures []txSignature   `json:"signatures"`
}

func (p *profile) msgType(name string) string {
	return p.msgPrefix + "/" + name
}

func newMsg(typ string, value any) (aminoMsg, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return aminoMsg{}, err
	}
	return aminoMsg{Type: typ, Value: raw}, nil
}

// strictUnmarshal 拒绝未知字段
func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errNonCanonical
	}
	return nil
}

// parseDoc 解析规范 sign doc，要求重新编码后逐字节一致
func parseDoc(raw []byte) (*signDoc, error) {
	if len(raw) == 0 {
		return nil, errEmpty
	}
	var doc signDoc
	if err := strictUnmarshal(raw, &doc); err != nil {
		return nil, err
	}
	again, err := json.Marshal(&doc)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, errNonCanonical
	}
	return &doc, nil
}

// parseSigned 解析已签名交易
func parseSigned(raw []byte) (*signedTx, *signDoc, error) {
	var tx signedTx
	if err := strictUnmarshal(raw, &tx); err != nil {
		return nil, nil, err
	}
	if len(tx.SignDoc) == 0 || len(tx.Signatures) == 0 {
		return nil, nil, errNonCanonical
	}
	again, err := json.Marshal(&tx)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, nil, errNonCanonical
	}
	doc, err := parseDoc(tx.SignDoc)
	if err != nil {
		return nil, nil, err
	}
	return &tx, doc, nil
}

// signers 返回 sign doc 中每条消息要求的签名地址
func (p *profile) signers(doc *signDoc) ([]string, error) {
	out := make([]string, 0, len(doc.Msgs))
	for _, msg := range doc.Msgs {
		switch msg.Type {
		case p.msgType("MsgSend"):
			var m msgSend
			if err := strictUnmarshal(msg.Value, &m); err != nil {
				return nil, err
			}
			out = append(out, m.FromAddress)
		case p.msgType("MsgDelegate"):
			var m msgDelegate
			if err := strictUnmarshal(msg.Value, &m); err != nil {
				return nil, err
			}
			out = append(out, m.DelegatorAddress)
		default:
			return nil, fmt.Errorf("%w: %s", errUnknownMsg, msg.Type)
		}
	}
	return out, nil
}

func (p *profile) hash(data []byte) []byte {
	if p.digest == digestKeccak256 {
		return crypto_util.Keccak256(data)
	}
	return crypto_util.SHA256(data)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseCoinAmount(c coin) (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok || v.Sign() < 0 {
		return nil, errNonCanonical
	}
	return v, nil
}
