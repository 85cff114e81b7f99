package keys

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic = errors.New("无效的助记词")
	ErrInvalidSeed     = errors.New("无效的种子")
	ErrInvalidPath     = errors.New("无效的派生路径")
)

// FromMnemonic 通过 BIP-39 助记词 + BIP-32 路径派生 secp256k1 密钥材料
// 例如 "m/44'/60'/0'/0/0"
func FromMnemonic(mnemonic, passphrase, path string) (*Material, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	defer zero(seed)
	return FromSeed(seed, path)
}

// FromSeed 使用 BIP-39 种子派生 secp256k1 密钥材料
func FromSeed(seed []byte, path string) (*Material, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeed
	}
	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	// 网络参数只影响 xprv 序列化前缀，不影响派生出的私钥
	current, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}
	for _, index := range indexes {
		next, err := current.Derive(index)
		current.Zero()
		if err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %w", err)
		}
		current = next
	}
	defer current.Zero()

	priv, err := current.ECPrivKey()
	if err != nil {
		return nil, err
	}
	defer priv.Zero()

	raw := priv.Serialize()
	defer zero(raw)
	return NewMaterial(SchemeSecp256k1, raw), nil
}

// Ed25519FromMnemonic 通过 SLIP-0010 派生 Ed25519 密钥材料，路径只允许 hardened 段
func Ed25519FromMnemonic(mnemonic, passphrase, path string) (*Material, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	defer zero(seed)
	return Ed25519FromSeed(seed, path)
}

// Ed25519FromSeed SLIP-0010 ed25519 派生
func Ed25519FromSeed(seed []byte, path string) (*Material, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeed
	}
	indexes, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	node := mac.Sum(nil)
	defer zero(node)

	data := make([]byte, 37)
	defer zero(data)
	for _, index := range indexes {
		if index < hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: ed25519 只支持 hardened 派生", ErrInvalidPath)
		}
		data[0] = 0x00
		copy(data[1:33], node[:32])
		binary.BigEndian.PutUint32(data[33:], index)

		mac = hmac.New(sha512.New, node[32:])
		mac.Write(data)
		next := mac.Sum(nil)
		copy(node, next)
		zero(next)
	}

	return NewMaterial(SchemeEd25519, node[:32]), nil
}

// parsePath 解析路径
// 支持格式: m/44'/0'/0'/0/0 或 m/44h/0h/0h/0/0
func parsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	path = path[2:]

	segments := strings.Split(path, "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		isHardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			isHardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 32)
		if err != nil || val >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: 无效的路径段 %q", ErrInvalidPath, segment)
		}
		index := uint32(val)
		if isHardened {
			index += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}
