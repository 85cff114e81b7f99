package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errBadAddress  = errors.New("invalid hex address")
	errBadChecksum = errors.New("address checksum mismatch")
)

// parseAddress 解析地址，接受 0x 前缀或链自己的前缀 (ronin:)。
// 大小写混合的地址必须满足 EIP-55 校验和。
func (p *profile) parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	body := s
	switch {
	case p.addrPrefix != "0x" && strings.HasPrefix(strings.ToLower(s), p.addrPrefix):
		body = "0x" + s[len(p.addrPrefix):]
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
	default:
		return common.Address{}, errBadAddress
	}
	if !common.IsHexAddress(body) {
		return common.Address{}, errBadAddress
	}
	addr := common.HexToAddress(body)
	hexPart := body[2:]
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) {
		if addr.Hex()[2:] != hexPart {
			return common.Address{}, errBadChecksum
		}
	}
	return addr, nil
}

func (p *profile) validateAddress(s string) error {
	_, err := p.parseAddress(s)
	return err
}

// formatAddress 输出链惯用格式
func (p *profile) formatAddress(a common.Address) string {
	if p.addrPrefix == "0x" {
		return a.Hex()
	}
	return p.addrPrefix + strings.ToLower(a.Hex()[2:])
}
