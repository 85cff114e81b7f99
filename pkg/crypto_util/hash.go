package crypto_util

import (
	"crypto/sha256"
	"crypto/sha512"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Hash160 仍依赖 RIPEMD-160
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// SHA256 计算多个输入拼接后的 SHA256 哈希值。
func SHA256(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// DoubleSHA256 比特币系使用的 SHA256(SHA256(x))
func DoubleSHA256(data ...[]byte) []byte {
	first := SHA256(data...)
	return SHA256(first)
}

// SHA224 互联网计算机 (ICP) 的账户哈希
func SHA224(data ...[]byte) []byte {
	h := sha256.New224()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// SHA512Half 取 SHA512 的前 32 字节 (Ripple 使用)
func SHA512Half(data ...[]byte) []byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)[:32]
}

// Keccak256 计算输入的 Keccak256 哈希值。
// 这是以太坊使用的哈希算法。
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// SHA3_256 标准 SHA3-256 (Aptos 使用)
func SHA3_256(data ...[]byte) []byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Blake2b256 Sui / Pactus / Substrate 使用的 32 字节 Blake2b
func Blake2b256(data ...[]byte) []byte {
	h, _ := blake2b.New256(nil) // key 为 nil 时不会出错
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Blake2b512 SS58 地址校验和使用
func Blake2b512(data ...[]byte) []byte {
	h, _ := blake2b.New512(nil)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Blake3 计算输入的 Blake3 哈希值。
// Blake3 是一种现代、高性能的加密哈希函数，这里用于意图指纹。
func Blake3(data ...[]byte) []byte {
	h := blake3.New(32, nil)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Hash160 RIPEMD160(SHA256(x))，P2PKH 地址与 Ripple 账户 ID
func Hash160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(SHA256(data))
	return h.Sum(nil)
}
