package cosmos

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

var (
	errBadSignature = errors.New("signature verification failed")
	errWrongSender  = errors.New("key does not control the message signer")
)

// sign 返回 r||s (sha256 链) 或 r||s||v (ethermint 链)
func (p *profile) sign(priv *btcec.PrivateKey, digest []byte) []byte {
	compact := ecdsa.SignCompact(priv, digest, true)
	// compact = [27 + 4 + recid] || r || s
	sig := make([]byte, 0, 65)
	sig = append(sig, compact[1:]...)
	if p.digest == digestKeccak256 {
		sig = append(sig, compact[0]-31)
	}
	return sig
}

func (p *profile) verify(digest []byte, sig *txcore.Signature) error {
	want := 64
	if p.digest == digestKeccak256 {
		want = 65
	}
	if sig == nil || len(sig.Bytes) != want {
		return errBadSignature
	}
	pub, err := btcec.ParsePubKey(sig.PublicKey)
	if err != nil {
		return errBadSignature
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(sig.Bytes[:32]) || s.SetByteSlice(sig.Bytes[32:64]) {
		return errBadSignature
	}
	if !ecdsa.NewSignature(&r, &s).Verify(digest, pub) {
		return errBadSignature
	}
	return nil
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
	doc, err := parseDoc(raw)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode sign doc")
	}
	if doc.ChainID != s.p.chainID {
		return nil, errno.Encoding(name, nil, "chain id %s does not match %s", doc.ChainID, s.p.chainID)
	}

	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()

	senders, err := s.p.signers(doc)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode sign doc")
	}
	owner := s.p.addressFromPubKey(k.PubKey())
	for _, sender := range senders {
		if sender != owner {
			return nil, errno.Signing(name, errWrongSender, "sign transaction")
		}
	}

	sig := s.p.sign(k.Priv(), s.p.hash(raw))
	pub := k.PubKey().SerializeCompressed()

	out, err := json.Marshal(&signedTx{
		SignDoc:    raw,
		Signatures: []txSignature{{PubKey: pub, Signature: sig}},
	})
	if err != nil {
		return nil, errno.Encoding(name, err, "encode signed transaction")
	}
	return txcore.NewSignedTransaction(s.p.chain, out, s.p.hash(out), []txcore.Signature{{
		Domain:    txcore.DomainTransaction,
		Scheme:    keys.SchemeSecp256k1,
		PublicKey: pub,
		Bytes:     sig,
	}}), nil
}

type messageSigner struct {
	p *profile
}

// messageDoc 构造 ADR-036 sign doc: 零手续费、空 chain id、account number 与 sequence 为 0
func (m *messageSigner) messageDoc(signer string, message []byte) ([]byte, error) {
	msg, err := newMsg("sign/MsgSignData", &msgSignData{Data: message, Signer: signer})
	if err != nil {
		return nil, err
	}
	return json.Marshal(&signDoc{
		AccountNumber: "0",
		ChainID:       "",
		Fee:           stdFee{Amount: []coin{}, Gas: "0"},
		Memo:          "",
		Msgs:          []aminoMsg{msg},
		Sequence:      "0",
	})
}

func (m *messageSigner) SignMessage(message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	name := m.p.chain.String()
	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()

	doc, err := m.messageDoc(m.p.addressFromPubKey(k.PubKey()), message)
	if err != nil {
		return nil, errno.Encoding(name, err, "encode message doc")
	}
	sig := m.p.sign(k.Priv(), m.p.hash(doc))

	msg := make([]byte, len(message))
	copy(msg, message)
	return &txcore.SignedMessage{
		Chain:   m.p.chain,
		Message: msg,
		Signature: txcore.Signature{
			Domain:    txcore.DomainMessage,
			Scheme:    keys.SchemeSecp256k1,
			PublicKey: k.PubKey().SerializeCompressed(),
			Bytes:     sig,
		},
		Encoded: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

func (m *messageSigner) VerifyMessage(message []byte, sig *txcore.Signature) error {
	name := m.p.chain.String()
	if sig == nil {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	pub, err := btcec.ParsePubKey(sig.PublicKey)
	if err != nil {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	doc, err := m.messageDoc(m.p.addressFromPubKey(pub), message)
	if err != nil {
		return errno.Encoding(name, err, "encode message doc")
	}
	if err := m.p.verify(m.p.hash(doc), sig); err != nil {
		return errno.Signing(name, err, "verify message")
	}
	return nil
}
