package keys

import (
	"bytes"
	"crypto/ed25519"
)

// Ed25519Key 是一次签名调用内有效的 Ed25519 私钥
type Ed25519Key struct {
	priv ed25519.PrivateKey
}

// OpenEd25519 接受 32 字节种子或 64 字节 (种子 + 公钥) 格式
func OpenEd25519(m *Material) (*Ed25519Key, error) {
	buf, err := m.borrow(SchemeEd25519)
	if err != nil {
		return nil, err
	}
	defer zero(buf)

	switch len(buf) {
	case ed25519.SeedSize, ed25519.PrivateKeySize:
	default:
		return nil, ErrMalformedKey
	}

	priv := ed25519.NewKeyFromSeed(buf[:ed25519.SeedSize])
	m.watch(priv)
	if len(buf) == ed25519.PrivateKeySize && !bytes.Equal(priv[ed25519.SeedSize:], buf[ed25519.SeedSize:]) {
		zero(priv)
		return nil, ErrMalformedKey
	}
	return &Ed25519Key{priv: priv}, nil
}

// Public 返回 32 字节公钥的拷贝
func (k *Ed25519Key) Public() []byte {
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, k.priv[ed25519.SeedSize:])
	return pub
}

// Sign 对消息进行签名。
func (k *Ed25519Key) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Close 清零展开后的私钥
func (k *Ed25519Key) Close() {
	if k == nil {
		return
	}
	zero(k.priv)
}
