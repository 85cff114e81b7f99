package keys

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// Secp256k1Key 是一次签名调用内有效的 secp256k1 私钥。
// 使用完毕必须 Close (通常 defer)，Close 会清零所有派生出的缓冲区。
type Secp256k1Key struct {
	scratch []byte
	priv    *btcec.PrivateKey
	ecdsa   *ecdsa.PrivateKey
}

// OpenSecp256k1 从 Material 租用一份 secp256k1 私钥
func OpenSecp256k1(m *Material) (*Secp256k1Key, error) {
	buf, err := m.borrow(SchemeSecp256k1)
	if err != nil {
		return nil, err
	}
	if len(buf) != 32 {
		zero(buf)
		return nil, ErrMalformedKey
	}

	// 私钥标量必须落在 (0, N)
	var s btcec.ModNScalar
	overflow := s.SetByteSlice(buf)
	valid := !overflow && !s.IsZero()
	s.Zero()
	if !valid {
		zero(buf)
		return nil, ErrMalformedKey
	}

	priv, _ := btcec.PrivKeyFromBytes(buf)
	return &Secp256k1Key{scratch: buf, priv: priv}, nil
}

// Priv 返回 btcec 私钥，用于比特币/Cosmos 系签名
func (k *Secp256k1Key) Priv() *btcec.PrivateKey {
	return k.priv
}

// PubKey 返回对应公钥
func (k *Secp256k1Key) PubKey() *btcec.PublicKey {
	return k.priv.PubKey()
}

// ECDSA 返回 go-ethereum 可用的 *ecdsa.PrivateKey (曲线为 crypto.S256)
func (k *Secp256k1Key) ECDSA() (*ecdsa.PrivateKey, error) {
	if k.ecdsa != nil {
		return k.ecdsa, nil
	}
	priv, err := crypto.ToECDSA(k.scratch)
	if err != nil {
		return nil, ErrMalformedKey
	}
	k.ecdsa = priv
	return priv, nil
}

// Close 清零租用的缓冲区和派生的私钥标量，可重复调用
func (k *Secp256k1Key) Close() {
	if k == nil {
		return
	}
	zero(k.scratch)
	if k.priv != nil {
		k.priv.Zero()
	}
	if k.ecdsa != nil && k.ecdsa.D != nil {
		words := k.ecdsa.D.Bits()
		for i := range words {
			words[i] = 0
		}
		k.ecdsa.D.SetInt64(0)
	}
}
