package txcore

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("金额格式错误")
	ErrNonPositive    = errors.New("金额必须大于 0")
	ErrTooPrecise     = errors.New("金额精度超过链的最小单位")
	ErrAmountTooLarge = errors.New("金额超出范围")
)

// maxAmountDigits 是 u256 最大值的十进制位数，任何链的金额都不会更长
const maxAmountDigits = 78

// ParseAmount 把展示单位的十进制字符串 ("1.5") 转换为最小单位整数。
// 拒绝负数、零以及小于最小单位的精度。
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Sign() <= 0 {
		return nil, ErrNonPositive
	}

	// 在展开成整数之前按位数拦截，避免 "1e10000000" 这类输入构造巨大整数
	exp := int64(d.Exponent()) + int64(decimals)
	digits := int64(d.NumDigits())
	if digits+exp > maxAmountDigits {
		return nil, fmt.Errorf("%w: %s", ErrAmountTooLarge, s)
	}
	if exp < -digits {
		return nil, fmt.Errorf("%w: %s (decimals=%d)", ErrTooPrecise, s, decimals)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s (decimals=%d)", ErrTooPrecise, s, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatAmount 将最小单位整数格式化为展示单位
func FormatAmount(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// ParseBaseUnits 解析最小单位的非负整数字符串 (手续费价格等)，空字符串返回 nil
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FitsUint64 判断金额是否能放进 uint64
func FitsUint64(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.IsUint64()
}

// MaxUint128 是 u128 金额上限
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// FitsUint128 判断金额是否能放进 u128
func FitsUint128(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(MaxUint128) <= 0
}
