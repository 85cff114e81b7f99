package utxo

import (
	"bytes"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/txscript"

	"chain-core/pkg/crypto_util"
)

var (
	errBadAddress  = errors.New("invalid base58 address")
	errBadChecksum = errors.New("address checksum mismatch")
	errBadVersion  = errors.New("address version does not match chain")
)

// encodeAddress base58check(version || hash160)
// 版本前缀可能是多字节 (Zcash t-addr / Decred)，因此不使用 btcutil.DecodeAddress
func (p *profile) encodeAddress(pkh []byte) string {
	payload := make([]byte, 0, len(p.version)+len(pkh)+4)
	payload = append(payload, p.version...)
	payload = append(payload, pkh...)
	sum := crypto_util.DoubleSHA256(payload)
	payload = append(payload, sum[:4]...)
	return base58.Encode(payload)
}

// decodeAddress 返回 20 字节公钥哈希
func (p *profile) decodeAddress(addr string) ([]byte, error) {
	raw := base58.Decode(addr)
	if len(raw) != len(p.version)+20+4 {
		return nil, errBadAddress
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(crypto_util.DoubleSHA256(body)[:4], sum) {
		return nil, errBadChecksum
	}
	if !bytes.Equal(body[:len(p.version)], p.version) {
		return nil, errBadVersion
	}
	pkh := make([]byte, 20)
	copy(pkh, body[len(p.version):])
	return pkh, nil
}

func (p *profile) validateAddress(addr string) error {
	_, err := p.decodeAddress(addr)
	return err
}

// addressFromPubKey 压缩公钥 -> P2PKH 地址
func (p *profile) addressFromPubKey(pub []byte) string {
	return p.encodeAddress(btcutil.Hash160(pub))
}

// payToPubKeyHash OP_DUP OP_HASH160 <pkh> OP_EQUALVERIFY OP_CHECKSIG
func payToPubKeyHash(pkh []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkh).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// pubKeyHashFromScript 从 P2PKH 脚本中取出公钥哈希，不是 P2PKH 时返回 nil
func pubKeyHashFromScript(script []byte) []byte {
	if txscript.GetScriptClass(script) != txscript.PubKeyHashTy || len(script) != 25 {
		return nil
	}
	pkh := make([]byte, 20)
	copy(pkh, script[3:23])
	return pkh
}
