package account

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash/crc32"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Pactus 地址仍依赖 RIPEMD-160

	"chain-core/pkg/crypto_util"
)

var (
	errBadAddress  = errors.New("malformed address")
	errBadChecksum = errors.New("address checksum mismatch")
	errBadPrefix   = errors.New("address prefix mismatch")
	errBadPubKey   = errors.New("malformed public key")
)

// addrCodec 链地址的字符串形式与原始字节之间的转换。
// 交易体中只存原始字节，字符串形式仅出现在请求与解码视图中。
type addrCodec interface {
	fromPubKey(pub []byte) ([]byte, error)
	encode(raw []byte) (string, error)
	decode(s string) ([]byte, error)
}

func (p *profile) validateAddress(s string) error {
	_, err := p.codec.decode(s)
	return err
}

func (p *profile) addressFromPubKey(pub []byte) (string, error) {
	raw, err := p.codec.fromPubKey(pub)
	if err != nil {
		return "", err
	}
	return p.codec.encode(raw)
}

func ed25519Pub(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errBadPubKey
	}
	return nil
}

// hexCodec 0x + 32 字节 hex (Sui / Aptos)
type hexCodec struct {
	derive func(pub []byte) []byte
}

var (
	suiCodec   = hexCodec{derive: func(pub []byte) []byte { return crypto_util.Blake2b256([]byte{0x00}, pub) }}
	aptosCodec = hexCodec{derive: func(pub []byte) []byte { return crypto_util.SHA3_256(pub, []byte{0x00}) }}
)

func (c hexCodec) fromPubKey(pub []byte) ([]byte, error) {
	if err := ed25519Pub(pub); err != nil {
		return nil, err
	}
	return c.derive(pub), nil
}

func (c hexCodec) encode(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errBadAddress
	}
	return "0x" + hex.EncodeToString(raw), nil
}

func (c hexCodec) decode(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return nil, errBadAddress
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, errBadAddress
	}
	return raw, nil
}

// solanaCodec base58 编码的 32 字节公钥
type solanaCodec struct{}

func (solanaCodec) fromPubKey(pub []byte) ([]byte, error) {
	if err := ed25519Pub(pub); err != nil {
		return nil, err
	}
	return bytes.Clone(pub), nil
}

func (solanaCodec) encode(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errBadAddress
	}
	return base58.Encode(raw), nil
}

func (solanaCodec) decode(s string) ([]byte, error) {
	raw := base58.Decode(s)
	if len(raw) != 32 || base58.Encode(raw) != s {
		return nil, errBadAddress
	}
	return raw, nil
}

// ss58Codec Substrate 地址: base58(prefix || pub || blake2b-512("SS58PRE" || prefix || pub)[:2])
type ss58Codec struct {
	prefix byte // 仅支持 0..63 的单字节前缀
}

var ss58Pre = []byte("SS58PRE")

func (ss58Codec) fromPubKey(pub []byte) ([]byte, error) {
	if err := ed25519Pub(pub); err != nil {
		return nil, err
	}
	return bytes.Clone(pub), nil
}

func (c ss58Codec) encode(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errBadAddress
	}
	body := append([]byte{c.prefix}, raw...)
	sum := crypto_util.Blake2b512(ss58Pre, body)
	return base58.Encode(append(body, sum[:2]...)), nil
}

func (c ss58Codec) decode(s string) ([]byte, error) {
	data := base58.Decode(s)
	if len(data) != 35 {
		return nil, errBadAddress
	}
	if data[0] != c.prefix {
		return nil, errBadPrefix
	}
	sum := crypto_util.Blake2b512(ss58Pre, data[:33])
	if !bytes.Equal(sum[:2], data[33:]) {
		return nil, errBadChecksum
	}
	return bytes.Clone(data[1:33]), nil
}

// rippleCodec base58check，使用 Ripple 字母表，账户 ID 为 Hash160(压缩公钥)
type rippleCodec struct{}

const (
	bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	rippleAlphabet  = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
)

func translate(s, from, to string) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		i := strings.IndexRune(from, r)
		if i < 0 {
			return "", false
		}
		sb.WriteByte(to[i])
	}
	return sb.String(), true
}

func (rippleCodec) fromPubKey(pub []byte) ([]byte, error) {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, errBadPubKey
	}
	return crypto_util.Hash160(key.SerializeCompressed()), nil
}

func (rippleCodec) encode(raw []byte) (string, error) {
	if len(raw) != 20 {
		return "", errBadAddress
	}
	s, _ := translate(base58.CheckEncode(raw, 0x00), bitcoinAlphabet, rippleAlphabet)
	return s, nil
}

func (rippleCodec) decode(s string) ([]byte, error) {
	btc, ok := translate(s, rippleAlphabet, bitcoinAlphabet)
	if !ok {
		return nil, errBadAddress
	}
	raw, version, err := base58.CheckDecode(btc)
	if err != nil {
		if errors.Is(err, base58.ErrChecksum) {
			return nil, errBadChecksum
		}
		return nil, errBadAddress
	}
	if version != 0x00 || len(raw) != 20 {
		return nil, errBadAddress
	}
	return raw, nil
}

// icpCodec ICP 账户标识: crc32(h) || h，h = sha224("\x0Aaccount-id" || principal || subaccount)
type icpCodec struct{}

// secp256k1 SubjectPublicKeyInfo 的 DER 前缀
var secp256k1SPKI, _ = hex.DecodeString("3056301006072a8648ce3d020106052b8104000a034200")

func (icpCodec) fromPubKey(pub []byte) ([]byte, error) {
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, errBadPubKey
	}
	der := append(bytes.Clone(secp256k1SPKI), key.SerializeUncompressed()...)
	// self-authenticating principal
	principal := append(crypto_util.SHA224(der), 0x02)
	h := crypto_util.SHA224([]byte("\x0Aaccount-id"), principal, make([]byte, 32))
	out := make([]byte, 4, 32)
	binary.BigEndian.PutUint32(out, crc32.ChecksumIEEE(h))
	return append(out, h...), nil
}

func (icpCodec) encode(raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", errBadAddress
	}
	return hex.EncodeToString(raw), nil
}

func (icpCodec) decode(s string) ([]byte, error) {
	if len(s) != 64 {
		return nil, errBadAddress
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errBadAddress
	}
	if binary.BigEndian.Uint32(raw[:4]) != crc32.ChecksumIEEE(raw[4:]) {
		return nil, errBadChecksum
	}
	return raw, nil
}

// tonCodec 原始地址形式 "<workchain>:<hex>"，仅支持 basechain (0) 与 masterchain (-1)。
// 原始字节为 workchain (int8) || 32 字节账户哈希。
type tonCodec struct{}

func (tonCodec) fromPubKey(pub []byte) ([]byte, error) {
	if err := ed25519Pub(pub); err != nil {
		return nil, err
	}
	return append([]byte{0x00}, crypto_util.SHA256(pub)...), nil
}

func (tonCodec) encode(raw []byte) (string, error) {
	if len(raw) != 33 {
		return "", errBadAddress
	}
	switch raw[0] {
	case 0x00:
		return "0:" + hex.EncodeToString(raw[1:]), nil
	case 0xff:
		return "-1:" + hex.EncodeToString(raw[1:]), nil
	default:
		return "", errBadAddress
	}
}

func (tonCodec) decode(s string) ([]byte, error) {
	wc, account, ok := strings.Cut(s, ":")
	if !ok || len(account) != 64 {
		return nil, errBadAddress
	}
	var tag byte
	switch wc {
	case "0":
		tag = 0x00
	case "-1":
		tag = 0xff
	default:
		return nil, errBadAddress
	}
	hash, err := hex.DecodeString(account)
	if err != nil || strings.ToLower(account) != account {
		return nil, errBadAddress
	}
	return append([]byte{tag}, hash...), nil
}

// pactusCodec bech32m("pc", type || ripemd160(blake2b-256(pub)))
type pactusCodec struct{}

const (
	pactusHRP            = "pc"
	pactusValidatorType  = 1
	pactusBLSAccountType = 2
	pactusEd25519Type    = 3
)

func (pactusCodec) fromPubKey(pub []byte) ([]byte, error) {
	if err := ed25519Pub(pub); err != nil {
		return nil, err
	}
	h := ripemd160.New()
	h.Write(crypto_util.Blake2b256(pub))
	return append([]byte{pactusEd25519Type}, h.Sum(nil)...), nil
}

func (pactusCodec) encode(raw []byte) (string, error) {
	if len(raw) != 21 {
		return "", errBadAddress
	}
	conv, err := bech32.ConvertBits(raw[1:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(pactusHRP, append([]byte{raw[0]}, conv...))
}

func (pactusCodec) decode(s string) ([]byte, error) {
	hrp, data, version, err := bech32.DecodeGeneric(s)
	if err != nil {
		return nil, errBadAddress
	}
	if hrp != pactusHRP {
		return nil, errBadPrefix
	}
	if version != bech32.VersionM || len(data) < 2 {
		return nil, errBadAddress
	}
	switch data[0] {
	case pactusValidatorType, pactusBLSAccountType, pactusEd25519Type:
	default:
		return nil, errBadAddress
	}
	hash, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil || len(hash) != 20 {
		return nil, errBadAddress
	}
	return append([]byte{data[0]}, hash...), nil
}
