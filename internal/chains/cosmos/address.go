package cosmos

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"

	"chain-core/pkg/crypto_util"
)

var (
	errBadAddress = errors.New("invalid address")
	errBadHRP     = errors.New("address prefix does not match chain")
)

func (p *profile) valoperHRP() string {
	return p.hrp + "valoper"
}

// parseAddress 返回 20 字节账户地址
func (p *profile) parseAddress(s string) ([]byte, error) {
	if p.style == addrHex {
		if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
			return nil, errBadAddress
		}
		addr := common.HexToAddress(s)
		return addr.Bytes(), nil
	}
	return decodeBech32(s, p.hrp)
}

func (p *profile) validateAddress(s string) error {
	_, err := p.parseAddress(s)
	return err
}

func (p *profile) validateValidator(s string) error {
	_, err := decodeBech32(s, p.valoperHRP())
	return err
}

func (p *profile) formatAddress(b []byte) string {
	if p.style == addrHex {
		return common.BytesToAddress(b).Hex()
	}
	s, _ := encodeBech32(p.hrp, b)
	return s
}

// addressFromPubKey 按链的地址规则从公钥推导账户地址
func (p *profile) addressFromPubKey(pub *btcec.PublicKey) string {
	var raw []byte
	switch p.style {
	case addrBech32Hash160:
		raw = crypto_util.Hash160(pub.SerializeCompressed())
	default:
		raw = crypto_util.Keccak256(pub.SerializeUncompressed()[1:])[12:]
	}
	return p.formatAddress(raw)
}

func decodeBech32(s, hrp string) ([]byte, error) {
	gotHRP, data, err := bech32.Decode(s)
	if err != nil {
		return nil, errBadAddress
	}
	if gotHRP != hrp {
		return nil, errBadHRP
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != 20 {
		return nil, errBadAddress
	}
	return raw, nil
}

func encodeBech32(hrp string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}
