package account

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"

	"chain-core/pkg/chain"
	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type util struct {
	p *profile
}

// TxHash 已签名交易返回链上交易 ID，未签名交易返回交易体的链哈希
func (u *util) TxHash(raw []byte) ([]byte, error) {
	name := u.p.chain.String()
	if isSigned(raw) {
		env, err := decodeEnvelope(raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode signed transaction")
		}
		if _, err := decodeBody(env.Unsigned); err != nil {
			return nil, errno.Encoding(name, err, "decode transaction")
		}
		return u.p.txID(env.Unsigned, raw, env.Signature), nil
	}
	if _, err := decodeBody(raw); err != nil {
		return nil, errno.Encoding(name, err, "decode transaction")
	}
	if u.p.chain == chain.Sui {
		// Sui 的交易 digest 只覆盖交易体
		return u.p.txID(raw, nil, nil), nil
	}
	return u.p.hash(raw), nil
}

func (u *util) DecodeUnsigned(raw []byte) (*txcore.UnsignedTransaction, error) {
	if isSigned(raw) {
		return nil, errno.Encoding(u.p.chain.String(), errEnvelope, "expected an unsigned transaction")
	}
	if _, err := decodeBody(raw); err != nil {
		return nil, errno.Encoding(u.p.chain.String(), err, "decode transaction")
	}
	return txcore.NewUnsignedTransaction(u.p.chain, raw), nil
}

func (u *util) Decode(raw []byte) (*txcore.Decoded, error) {
	name := u.p.chain.String()
	if !isSigned(raw) {
		b, err := decodeBody(raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode transaction")
		}
		d, err := u.view(b, raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode addresses")
		}
		return d, nil
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode signed transaction")
	}
	b, err := decodeBody(env.Unsigned)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode transaction")
	}
	d, err := u.view(b, env.Unsigned)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode addresses")
	}
	d.Signed = true
	d.Fields["hash"] = hex.EncodeToString(u.p.txID(env.Unsigned, raw, env.Signature))
	d.Signatures = []txcore.Signature{{
		Domain:    txcore.DomainTransaction,
		Scheme:    u.p.scheme,
		PublicKey: env.PublicKey,
		Bytes:     env.Signature,
	}}
	return d, nil
}

func (u *util) view(b *body, raw []byte) (*txcore.Decoded, error) {
	from, err := u.p.codec.encode(b.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	d := &txcore.Decoded{
		Chain:    u.p.chain,
		Unsigned: txcore.NewUnsignedTransaction(u.p.chain, raw),
		From:     from,
		Sequence: b.Sequence,
		Memo:     b.Memo,
		Fee:      maxFee(b.FeeLimit, b.FeePrice),
		Fields: map[string]string{
			"action":     string(b.Action),
			"chain_id":   b.ChainID,
			"expiration": strconv.FormatUint(b.Expiration, 10),
			"fee_limit":  strconv.FormatUint(b.FeeLimit, 10),
			"fee_price":  b.FeePrice.String(),
		},
	}
	if len(b.Reference) > 0 {
		d.Fields["reference"] = hex.EncodeToString(b.Reference)
	}
	if b.Asset != "" {
		d.Fields["asset"] = b.Asset
	}
	if len(b.Payload) > 0 {
		d.Fields["payload"] = hex.EncodeToString(b.Payload)
	}
	for i, out := range b.Outputs {
		addr, err := u.p.codec.encode(out.Address)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		d.Outputs = append(d.Outputs, txcore.Output{Address: addr, Amount: out.Amount})
	}
	return d, nil
}

// Validate 检查大小、签名、网络标识、输出数量、memo 与引用区块
func (u *util) Validate(raw []byte) error {
	name := u.p.chain.String()
	if len(raw) > u.p.maxTxBytes {
		return errno.Encoding(name, nil, "transaction size %d exceeds %d bytes", len(raw), u.p.maxTxBytes)
	}

	unsigned := raw
	if isSigned(raw) {
		env, err := decodeEnvelope(raw)
		if err != nil {
			return errno.Encoding(name, err, "decode signed transaction")
		}
		if err := u.p.verify(env.PublicKey, u.p.txInput(env.Unsigned), env.Signature); err != nil {
			return errno.Encoding(name, err, "invalid signature")
		}
		b, err := decodeBody(env.Unsigned)
		if err != nil {
			return errno.Encoding(name, err, "decode transaction")
		}
		owner, err := u.p.codec.fromPubKey(env.PublicKey)
		if err != nil || !bytes.Equal(owner, b.Sender) {
			return errno.Encoding(name, errWrongSender, "invalid signer")
		}
		unsigned = env.Unsigned
	}

	b, err := decodeBody(unsigned)
	if err != nil {
		return errno.Encoding(name, err, "decode transaction")
	}
	if b.ChainID != u.p.chainID {
		return errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", b.ChainID, u.p.chainID)
	}
	if len(b.Outputs) == 0 || len(b.Outputs) > u.p.maxOutputs {
		return errno.Encoding(name, nil, "output count %d out of range", len(b.Outputs))
	}
	if b.Memo != "" && (!u.p.memo || len(b.Memo) > MaxMemoBytes || !utf8.ValidString(b.Memo)) {
		return errno.Encoding(name, nil, "invalid memo")
	}
	if u.p.needsRef && len(b.Reference) != 32 {
		return errno.Encoding(name, nil, "missing recent block hash")
	}
	if _, err := u.view(b, unsigned); err != nil {
		return errno.Encoding(name, err, "decode addresses")
	}
	return nil
}

func (u *util) VerifyTx(payload []byte, sig *txcore.Signature) error {
	name := u.p.chain.String()
	if sig == nil {
		return errno.Signing(name, errBadSignature, "verify transaction signature")
	}
	if err := u.p.verify(sig.PublicKey, u.p.txInput(payload), sig.Bytes); err != nil {
		return errno.Signing(name, err, "verify transaction signature")
	}
	return nil
}
