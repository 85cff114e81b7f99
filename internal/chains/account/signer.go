package account

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

var (
	errBadSignature = errors.New("signature verification failed")
	errWrongSender  = errors.New("key does not control the sender account")
)

// handle 一次签名调用内的密钥，close 负责清零
type handle struct {
	pub   []byte
	sign  func(input []byte) ([]byte, error)
	close func()
}

func (p *profile) open(key *keys.Material) (*handle, error) {
	if p.scheme == keys.SchemeEd25519 {
		k, err := keys.OpenEd25519(key)
		if err != nil {
			return nil, err
		}
		return &handle{
			pub:   k.Public(),
			sign:  func(input []byte) ([]byte, error) { return k.Sign(input), nil },
			close: k.Close,
		}, nil
	}

	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, err
	}
	return &handle{
		pub: k.PubKey().SerializeCompressed(),
		sign: func(digest []byte) ([]byte, error) {
			if p.derSig {
				return ecdsa.Sign(k.Priv(), digest).Serialize(), nil
			}
			compact := ecdsa.SignCompact(k.Priv(), digest, true)
			return compact[1:], nil
		},
		close: k.Close,
	}, nil
}

// verify 按链的曲线校验签名，input 为签名域处理后的数据
func (p *profile) verify(pub, input, sig []byte) error {
	if p.scheme == keys.SchemeEd25519 {
		if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return errBadSignature
		}
		if !ed25519.Verify(pub, input, sig) {
			return errBadSignature
		}
		return nil
	}

	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return errBadSignature
	}
	var parsed *ecdsa.Signature
	if p.derSig {
		parsed, err = ecdsa.ParseDERSignature(sig)
		if err != nil {
			return errBadSignature
		}
	} else {
		if len(sig) != 64 {
			return errBadSignature
		}
		var r, s btcec.ModNScalar
		if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
			return errBadSignature
		}
		parsed = ecdsa.NewSignature(&r, &s)
	}
	if !parsed.Verify(input, key) {
		return errBadSignature
	}
	return nil
}

func (p *profile) encodeSig(sig, pub []byte) string {
	switch p.text {
	case textHex0x:
		return "0x" + hex.EncodeToString(sig)
	case textHexUpper:
		return strings.ToUpper(hex.EncodeToString(sig))
	case textBase58:
		return base58.Encode(sig)
	case textBase64:
		return base64.StdEncoding.EncodeToString(sig)
	case textSuiBase64:
		// 0x00 为 ed25519 标志位
		return base64.StdEncoding.EncodeToString(concat([]byte{0x00}, sig, pub))
	default:
		return hex.EncodeToString(sig)
	}
}

type signer struct {
	p *profile
}

func (s *signer) SignTx(utx *txcore.UnsignedTransaction, key *keys.Material) (*txcore.SignedTransaction, error) {
	name := s.p.chain.String()
	if utx == nil {
		return nil, errno.Encoding(name, errEmpty, "missing transaction")
	}
	raw := utx.Bytes()
	b, err := decodeBody(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode transaction")
	}
	if b.ChainID != s.p.chainID {
		return nil, errno.Encoding(name, nil, "chain id %s does not match %s", b.ChainID, s.p.chainID)
	}

	h, err := s.p.open(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer h.close()

	owner, err := s.p.codec.fromPubKey(h.pub)
	if err != nil {
		return nil, errno.Signing(name, err, "derive sender")
	}
	if !bytes.Equal(owner, b.Sender) {
		return nil, errno.Signing(name, errWrongSender, "sign transaction")
	}

	sig, err := h.sign(s.p.txInput(raw))
	if err != nil {
		return nil, errno.Signing(name, err, "sign transaction")
	}
	out, err := (&envelope{Unsigned: raw, PublicKey: h.pub, Signature: sig}).encode()
	if err != nil {
		return nil, errno.Encoding(name, err, "encode signed transaction")
	}
	return txcore.NewSignedTransaction(s.p.chain, out, s.p.txID(raw, out, sig), []txcore.Signature{{
		Domain:    txcore.DomainTransaction,
		Scheme:    s.p.scheme,
		PublicKey: h.pub,
		Bytes:     sig,
	}}), nil
}

type messageSigner struct {
	p *profile
}

func (m *messageSigner) SignMessage(message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	name := m.p.chain.String()
	input, err := m.p.msgInput(message)
	if err != nil {
		return nil, errno.Encoding(name, err, "encode message")
	}

	h, err := m.p.open(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer h.close()

	sig, err := h.sign(input)
	if err != nil {
		return nil, errno.Signing(name, err, "sign message")
	}
	return &txcore.SignedMessage{
		Chain:   m.p.chain,
		Message: bytes.Clone(message),
		Signature: txcore.Signature{
			Domain:    txcore.DomainMessage,
			Scheme:    m.p.scheme,
			PublicKey: h.pub,
			Bytes:     sig,
		},
		Encoded: m.p.encodeSig(sig, h.pub),
	}, nil
}

func (m *messageSigner) VerifyMessage(message []byte, sig *txcore.Signature) error {
	name := m.p.chain.String()
	if sig == nil {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	input, err := m.p.msgInput(message)
	if err != nil {
		return errno.Encoding(name, err, "encode message")
	}
	if err := m.p.verify(sig.PublicKey, input, sig.Bytes); err != nil {
		return errno.Signing(name, err, "verify message")
	}
	return nil
}
