package utxo

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

var (
	errWrongKey     = errors.New("key does not control the spent outputs")
	errBadSignature = errors.New("signature verification failed")
)

type signer struct {
	p *profile
}

// SignTx 对每个输入做 legacy SIGHASH_ALL 签名
func (s *signer) SignTx(utx *txcore.UnsignedTransaction, key *keys.Material) (*txcore.SignedTransaction, error) {
	name := s.p.chain.String()
	if utx == nil {
		return nil, errno.Encoding(name, errEmpty, "missing transaction")
	}
	tx, err := parseUnsigned(utx.Bytes())
	if err != nil {
		return nil, errno.Encoding(name, err, "decode unsigned transaction")
	}

	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()

	pub := k.PubKey().SerializeCompressed()
	pkh := btcutil.Hash160(pub)

	sigs := make([]txcore.Signature, len(tx.TxIn))
	scripts := make([][]byte, len(tx.TxIn))
	for i, in := range tx.TxIn {
		if !bytes.Equal(pubKeyHashFromScript(in.SignatureScript), pkh) {
			return nil, errno.Signing(name, errWrongKey, "input %d", i)
		}
		sig, err := txscript.RawTxInSignature(tx, i, in.SignatureScript, txscript.SigHashAll, k.Priv())
		if err != nil {
			return nil, errno.Signing(name, err, "sign input %d", i)
		}
		script, err := txscript.NewScriptBuilder().AddData(sig).AddData(pub).Script()
		if err != nil {
			return nil, errno.Encoding(name, err, "build signature script")
		}
		scripts[i] = script
		sigs[i] = txcore.Signature{
			Domain:    txcore.DomainTransaction,
			Scheme:    keys.SchemeSecp256k1,
			PublicKey: pub,
			Bytes:     sig,
			Index:     i,
		}
	}

	for i, in := range tx.TxIn {
		in.SignatureScript = scripts[i]
	}
	raw, err := serialize(tx)
	if err != nil {
		return nil, errno.Encoding(name, err, "serialize transaction")
	}
	hash := tx.TxHash()
	return txcore.NewSignedTransaction(s.p.chain, raw, reverse(hash[:]), sigs), nil
}

// verifyInput 校验第 idx 个输入的签名
func verifyInput(payload []byte, sig *txcore.Signature) error {
	if sig == nil || len(sig.Bytes) < 2 {
		return errBadSignature
	}
	tx, err := parseUnsigned(payload)
	if err != nil {
		return err
	}
	if sig.Index < 0 || sig.Index >= len(tx.TxIn) {
		return errBadSignature
	}
	prevScript := tx.TxIn[sig.Index].SignatureScript
	if !bytes.Equal(pubKeyHashFromScript(prevScript), btcutil.Hash160(sig.PublicKey)) {
		return errWrongKey
	}

	der, hashType := sig.Bytes[:len(sig.Bytes)-1], txscript.SigHashType(sig.Bytes[len(sig.Bytes)-1])
	if hashType != txscript.SigHashAll {
		return errBadSignature
	}
	parsed, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return errBadSignature
	}
	pub, err := btcec.ParsePubKey(sig.PublicKey)
	if err != nil {
		return errBadSignature
	}
	digest, err := txscript.CalcSignatureHash(prevScript, hashType, tx, sig.Index)
	if err != nil {
		return err
	}
	if !parsed.Verify(digest, pub) {
		return errBadSignature
	}
	return nil
}
