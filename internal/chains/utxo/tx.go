package utxo

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	errEmpty        = errors.New("empty input")
	errNonCanonical = errors.New("non-canonical encoding")
	errNoInputs     = errors.New("transaction has no inputs")
	errNotUnsigned  = errors.New("input script is not a P2PKH placeholder")
	errSigScript    = errors.New("unexpected signature script")
)

func serialize(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseTx 反序列化并要求重新序列化后逐字节一致
func parseTx(raw []byte) (*wire.MsgTx, error) {
	if len(raw) == 0 {
		return nil, errEmpty
	}
	tx := new(wire.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	again, err := serialize(tx)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, errNonCanonical
	}
	if len(tx.TxIn) == 0 {
		return nil, errNoInputs
	}
	return tx, nil
}

// isUnsigned 所有输入的 SignatureScript 都是 P2PKH 锁定脚本
func isUnsigned(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		if pubKeyHashFromScript(in.SignatureScript) == nil {
			return false
		}
	}
	return true
}

// parseUnsigned 解析未签名交易
func parseUnsigned(raw []byte) (*wire.MsgTx, error) {
	tx, err := parseTx(raw)
	if err != nil {
		return nil, err
	}
	if !isUnsigned(tx) {
		return nil, errNotUnsigned
	}
	return tx, nil
}

// spend 是已签名输入的解锁数据
type spend struct {
	sig    []byte // DER || hashType
	pubKey []byte
}

// splitSigScript 解析 <sig> <pubkey> 解锁脚本
func splitSigScript(script []byte) (*spend, error) {
	if !txscript.IsPushOnlyScript(script) {
		return nil, errSigScript
	}
	pushes, err := txscript.PushedData(script)
	if err != nil {
		return nil, err
	}
	if len(pushes) != 2 || len(pushes[0]) < 9 {
		return nil, errSigScript
	}
	if l := len(pushes[1]); l != 33 && l != 65 {
		return nil, errSigScript
	}
	return &spend{sig: pushes[0], pubKey: pushes[1]}, nil
}

// unsignedFrom 从已签名交易恢复未签名形式
func unsignedFrom(signed *wire.MsgTx) (*wire.MsgTx, []*spend, error) {
	tx := signed.Copy()
	spends := make([]*spend, len(tx.TxIn))
	for i, in := range tx.TxIn {
		s, err := splitSigScript(in.SignatureScript)
		if err != nil {
			return nil, nil, err
		}
		script, err := payToPubKeyHash(btcutil.Hash160(s.pubKey))
		if err != nil {
			return nil, nil, err
		}
		in.SignatureScript = script
		spends[i] = s
	}
	return tx, spends, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
