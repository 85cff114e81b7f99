package utxo

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

type util struct {
	p *profile
}

// TxHash 已签名交易返回 txid (显示字节序)；未签名交易返回其规范字节的 sha256d
func (u *util) TxHash(raw []byte) ([]byte, error) {
	tx, err := parseTx(raw)
	if err != nil {
		return nil, errno.Encoding(u.p.chain.String(), err, "decode transaction")
	}
	if isUnsigned(tx) {
		return chainhash.DoubleHashB(raw), nil
	}
	hash := tx.TxHash()
	return reverse(hash[:]), nil
}

func (u *util) DecodeUnsigned(raw []byte) (*txcore.UnsignedTransaction, error) {
	if _, err := parseUnsigned(raw); err != nil {
		return nil, errno.Encoding(u.p.chain.String(), err, "decode unsigned transaction")
	}
	return txcore.NewUnsignedTransaction(u.p.chain, raw), nil
}

func (u *util) Decode(raw []byte) (*txcore.Decoded, error) {
	name := u.p.chain.String()
	tx, err := parseTx(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode transaction")
	}
	if isUnsigned(tx) {
		return u.view(tx, raw), nil
	}

	unsigned, spends, err := unsignedFrom(tx)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode signature scripts")
	}
	unsignedRaw, err := serialize(unsigned)
	if err != nil {
		return nil, errno.Encoding(name, err, "serialize transaction")
	}

	d := u.view(unsigned, unsignedRaw)
	d.Signed = true
	d.Signatures = make([]txcore.Signature, len(spends))
	for i, s := range spends {
		d.Signatures[i] = txcore.Signature{
			Domain:    txcore.DomainTransaction,
			Scheme:    keys.SchemeSecp256k1,
			PublicKey: s.pubKey,
			Bytes:     s.sig,
			Index:     i,
		}
	}
	hash := tx.TxHash()
	d.Fields["txid"] = hash.String()
	return d, nil
}

func (u *util) view(tx *wire.MsgTx, raw []byte) *txcore.Decoded {
	d := &txcore.Decoded{
		Chain:    u.p.chain,
		Unsigned: txcore.NewUnsignedTransaction(u.p.chain, raw),
		Fields: map[string]string{
			"version":  fmt.Sprintf("%d", tx.Version),
			"locktime": fmt.Sprintf("%d", tx.LockTime),
			"inputs":   fmt.Sprintf("%d", len(tx.TxIn)),
		},
	}
	if pkh := pubKeyHashFromScript(tx.TxIn[0].SignatureScript); pkh != nil {
		d.From = u.p.encodeAddress(pkh)
	}
	for i, in := range tx.TxIn {
		d.Fields[fmt.Sprintf("input.%d", i)] = in.PreviousOutPoint.String()
	}
	for _, out := range tx.TxOut {
		if pkh := pubKeyHashFromScript(out.PkScript); pkh != nil {
			d.Outputs = append(d.Outputs, txcore.Output{
				Address: u.p.encodeAddress(pkh),
				Amount:  big.NewInt(out.Value),
			})
			continue
		}
		if txscript.GetScriptClass(out.PkScript) == txscript.NullDataTy {
			if pushes, err := txscript.PushedData(out.PkScript); err == nil && len(pushes) == 1 {
				d.Memo = string(pushes[0])
			}
		}
	}
	return d
}

// Validate 结构检查 (CheckTransactionSanity)、大小、粉尘输出
func (u *util) Validate(raw []byte) error {
	name := u.p.chain.String()
	if len(raw) > u.p.maxTxBytes {
		return errno.Encoding(name, nil, "transaction size %d exceeds %d bytes", len(raw), u.p.maxTxBytes)
	}
	tx, err := parseTx(raw)
	if err != nil {
		return errno.Encoding(name, err, "decode transaction")
	}
	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
		return errno.Encoding(name, err, "transaction sanity check")
	}

	nullData := 0
	for i, out := range tx.TxOut {
		switch txscript.GetScriptClass(out.PkScript) {
		case txscript.NullDataTy:
			nullData++
			if nullData > 1 {
				return errno.Encoding(name, nil, "more than one OP_RETURN output")
			}
		case txscript.PubKeyHashTy:
			if out.Value < DustLimit {
				return errno.Encoding(name, nil, "output %d is dust (%d)", i, out.Value)
			}
		default:
			return errno.Encoding(name, nil, "output %d has non-standard script", i)
		}
	}

	if !isUnsigned(tx) {
		if _, _, err := unsignedFrom(tx); err != nil {
			return errno.Encoding(name, err, "decode signature scripts")
		}
	}
	return nil
}

func (u *util) VerifyTx(payload []byte, sig *txcore.Signature) error {
	if err := verifyInput(payload, sig); err != nil {
		return errno.Signing(u.p.chain.String(), err, "verify transaction signature")
	}
	return nil
}
