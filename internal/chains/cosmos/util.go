package cosmos

import (
	"bytes"
	"fmt"
	"math/big"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

type util struct {
	p *profile
}

func isSigned(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte(`{"sign_doc":`))
}

// TxHash 已签名交易返回序列化字节的哈希，未签名 sign doc 返回签名摘要
func (u *util) TxHash(raw []byte) ([]byte, error) {
	name := u.p.chain.String()
	if isSigned(raw) {
		if _, _, err := parseSigned(raw); err != nil {
			return nil, errno.Encoding(name, err, "decode signed transaction")
		}
	} else if _, err := parseDoc(raw); err != nil {
		return nil, errno.Encoding(name, err, "decode sign doc")
	}
	return u.p.hash(raw), nil
}

func (u *util) DecodeUnsigned(raw []byte) (*txcore.UnsignedTransaction, error) {
	if _, err := parseDoc(raw); err != nil {
		return nil, errno.Encoding(u.p.chain.String(), err, "decode sign doc")
	}
	return txcore.NewUnsignedTransaction(u.p.chain, raw), nil
}

func (u *util) Decode(raw []byte) (*txcore.Decoded, error) {
	name := u.p.chain.String()
	if !isSigned(raw) {
		doc, err := parseDoc(raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode sign doc")
		}
		d, err := u.view(doc, raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode messages")
		}
		return d, nil
	}

	tx, doc, err := parseSigned(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode signed transaction")
	}
	d, err := u.view(doc, tx.SignDoc)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode messages")
	}
	d.Signed = true
	for i, s := range tx.Signatures {
		d.Signatures = append(d.Signatures, txcore.Signature{
			Domain:    txcore.DomainTransaction,
			Scheme:    keys.SchemeSecp256k1,
			PublicKey: s.PubKey,
			Bytes:     s.Signature,
			Index:     i,
		})
	}
	return d, nil
}

func (u *util) view(doc *signDoc, raw []byte) (*txcore.Decoded, error) {
	seq, err := parseUint(doc.Sequence)
	if err != nil {
		return nil, err
	}
	d := &txcore.Decoded{
		Chain:    u.p.chain,
		Unsigned: txcore.NewUnsignedTransaction(u.p.chain, raw),
		Sequence: seq,
		Memo:     doc.Memo,
		Fee:      new(big.Int),
		Fields: map[string]string{
			"chain_id":       doc.ChainID,
			"account_number": doc.AccountNumber,
			"gas":            doc.Fee.Gas,
			"msgs":           fmt.Sprintf("%d", len(doc.Msgs)),
		},
	}
	for _, c := range doc.Fee.Amount {
		v, err := parseCoinAmount(c)
		if err != nil {
			return nil, err
		}
		d.Fee.Add(d.Fee, v)
	}

	for i, msg := range doc.Msgs {
		d.Fields[fmt.Sprintf("msg.%d.type", i)] = msg.Type
		switch msg.Type {
		case u.p.msgType("MsgSend"):
			var m msgSend
			if err := strictUnmarshal(msg.Value, &m); err != nil {
				return nil, err
			}
			d.From = m.FromAddress
			for _, c := range m.Amount {
				v, err := parseCoinAmount(c)
				if err != nil {
					return nil, err
				}
				d.Outputs = append(d.Outputs, txcore.Output{Address: m.ToAddress, Amount: v})
				d.Fields["denom"] = c.Denom
			}
		case u.p.msgType("MsgDelegate"):
			var m msgDelegate
			if err := strictUnmarshal(msg.Value, &m); err != nil {
				return nil, err
			}
			v, err := parseCoinAmount(m.Amount)
			if err != nil {
				return nil, err
			}
			d.From = m.DelegatorAddress
			d.Outputs = append(d.Outputs, txcore.Output{Address: m.ValidatorAddress, Amount: v})
			d.Fields["denom"] = m.Amount.Denom
		default:
			return nil, fmt.Errorf("%w: %s", errUnknownMsg, msg.Type)
		}
	}
	return d, nil
}

// Validate 检查大小、chain id、memo 长度、gas 与地址格式
func (u *util) Validate(raw []byte) error {
	name := u.p.chain.String()
	if len(raw) > u.p.maxTxBytes {
		return errno.Encoding(name, nil, "transaction size %d exceeds %d bytes", len(raw), u.p.maxTxBytes)
	}

	var doc *signDoc
	if isSigned(raw) {
		tx, parsed, err := parseSigned(raw)
		if err != nil {
			return errno.Encoding(name, err, "decode signed transaction")
		}
		for _, s := range tx.Signatures {
			sig := &txcore.Signature{PublicKey: s.PubKey, Bytes: s.Signature}
			if err := u.p.verify(u.p.hash(tx.SignDoc), sig); err != nil {
				return errno.Encoding(name, err, "invalid signature")
			}
		}
		doc = parsed
	} else {
		parsed, err := parseDoc(raw)
		if err != nil {
			return errno.Encoding(name, err, "decode sign doc")
		}
		doc = parsed
	}

	if doc.ChainID != u.p.chainID {
		return errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", doc.ChainID, u.p.chainID)
	}
	if len([]rune(doc.Memo)) > MaxMemoChars {
		return errno.Encoding(name, nil, "memo longer than %d characters", MaxMemoChars)
	}
	if len(doc.Msgs) == 0 || len(doc.Msgs) > MaxMsgs {
		return errno.Encoding(name, nil, "message count %d out of range", len(doc.Msgs))
	}
	if gas, err := parseUint(doc.Fee.Gas); err != nil || gas == 0 {
		return errno.Encoding(name, err, "invalid gas %q", doc.Fee.Gas)
	}

	d, err := u.view(doc, nil)
	if err != nil {
		return errno.Encoding(name, err, "decode messages")
	}
	if err := u.p.validateAddress(d.From); err != nil {
		return errno.Encoding(name, err, "invalid sender %q", d.From)
	}
	return nil
}

func (u *util) VerifyTx(payload []byte, sig *txcore.Signature) error {
	if err := u.p.verify(u.p.hash(payload), sig); err != nil {
		return errno.Signing(u.p.chain.String(), err, "verify transaction signature")
	}
	return nil
}

