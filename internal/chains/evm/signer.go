package evm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

var errBadSignature = errors.New("signature verification failed")

type signer struct {
	p *profile
}

func (s *signer) SignTx(utx *txcore.UnsignedTransaction, key *keys.Material) (*txcore.SignedTransaction, error) {
	name := s.p.chain.String()
	if utx == nil {
		return nil, errno.Encoding(name, errEmpty, "missing transaction")
	}
	raw := utx.Bytes()
	f, err := parsePreimage(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode unsigned transaction")
	}
	if f.ChainID.Cmp(s.p.chainID) != 0 {
		return nil, errno.Encoding(name, nil, "chain id %s does not match %s", f.ChainID, s.p.chainID)
	}

	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()
	priv, err := k.ECDSA()
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}

	// 签名 (R || S || V)
	sig, err := crypto.Sign(crypto.Keccak256(raw), priv)
	if err != nil {
		return nil, errno.Signing(name, err, "sign transaction")
	}

	signedTx, err := f.toTx().WithSignature(f.signer(), sig)
	if err != nil {
		return nil, errno.Signing(name, err, "attach signature")
	}

	// Serialize (RLP Encoding)
	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errno.Encoding(name, err, "marshal signed transaction")
	}

	hash := signedTx.Hash()
	return txcore.NewSignedTransaction(s.p.chain, rawTx, hash.Bytes(), []txcore.Signature{{
		Domain:    txcore.DomainTransaction,
		Scheme:    keys.SchemeSecp256k1,
		PublicKey: crypto.FromECDSAPub(&priv.PublicKey),
		Bytes:     sig,
	}}), nil
}

type messageSigner struct {
	p *profile
}

// SignMessage 使用 EIP-191 personal_sign 规则签名
func (m *messageSigner) SignMessage(message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	name := m.p.chain.String()
	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()
	priv, err := k.ECDSA()
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}

	sig, err := crypto.Sign(accounts.TextHash(message), priv)
	if err != nil {
		return nil, errno.Signing(name, err, "sign message")
	}

	// 钱包惯例: V 使用 27/28
	wire := make([]byte, len(sig))
	copy(wire, sig)
	wire[crypto.RecoveryIDOffset] += 27

	msg := make([]byte, len(message))
	copy(msg, message)
	return &txcore.SignedMessage{
		Chain:   m.p.chain,
		Message: msg,
		Signature: txcore.Signature{
			Domain:    txcore.DomainMessage,
			Scheme:    keys.SchemeSecp256k1,
			PublicKey: crypto.FromECDSAPub(&priv.PublicKey),
			Bytes:     sig,
		},
		Encoded: "0x" + hex.EncodeToString(wire),
	}, nil
}

func (m *messageSigner) VerifyMessage(message []byte, sig *txcore.Signature) error {
	if err := verify(accounts.TextHash(message), sig); err != nil {
		return errno.Signing(m.p.chain.String(), err, "verify message")
	}
	return nil
}

// verify 校验 digest 上的签名，同时检查可恢复出的公钥与声明的公钥一致
func verify(digest []byte, sig *txcore.Signature) error {
	if sig == nil || len(sig.Bytes) != crypto.SignatureLength {
		return errBadSignature
	}
	pub, err := publicKey(sig.PublicKey)
	if err != nil {
		return err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(pub), digest, sig.Bytes[:64]) {
		return errBadSignature
	}
	recovered, err := crypto.SigToPub(digest, sig.Bytes)
	if err != nil || !recovered.Equal(pub) {
		return errBadSignature
	}
	return nil
}

func publicKey(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case 33:
		return crypto.DecompressPubkey(b)
	case 65:
		return crypto.UnmarshalPubkey(b)
	default:
		return nil, errBadSignature
	}
}
