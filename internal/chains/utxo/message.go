package utxo

import (
	"bytes"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

type messageSigner struct {
	p *profile
}

// messageDigest sha256d(varstr(magic) || varstr(message))
func (m *messageSigner) messageDigest(message []byte) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, m.p.magic)
	_ = wire.WriteVarString(&buf, 0, string(message))
	return chainhash.DoubleHashB(buf.Bytes())
}

// SignMessage 生成 65 字节可恢复签名，Encoded 为 base64 (与 signmessage 兼容)
func (m *messageSigner) SignMessage(message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	name := m.p.chain.String()
	k, err := keys.OpenSecp256k1(key)
	if err != nil {
		return nil, errno.Signing(name, err, "open key")
	}
	defer k.Close()

	sig := ecdsa.SignCompact(k.Priv(), m.messageDigest(message), true)

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
	if sig == nil || len(sig.Bytes) != 65 {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	pub, _, err := ecdsa.RecoverCompact(sig.Bytes, m.messageDigest(message))
	if err != nil {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	if !bytes.Equal(pub.SerializeCompressed(), sig.PublicKey) && !bytes.Equal(pub.SerializeUncompressed(), sig.PublicKey) {
		return errno.Signing(name, errBadSignature, "verify message")
	}
	return nil
}
