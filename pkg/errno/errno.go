package errno

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 区分错误类别，调用方据此判断是 "输入错误"、"签名失败" 还是 "编码失败"
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedChain
	KindInvalidIntent
	KindBuild
	KindSigning
	KindEncoding
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedChain:
		return "unsupported_chain"
	case KindInvalidIntent:
		return "invalid_intent"
	case KindBuild:
		return "build"
	case KindSigning:
		return "signing"
	case KindEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// Build 错误的原因码
const (
	ReasonMissingState      = "missing_chain_state"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonChainIDMismatch   = "chain_id_mismatch"
	ReasonUnsupportedAction = "unsupported_action"
	ReasonAmountOverflow    = "amount_overflow"
	ReasonFeeTooHigh        = "fee_too_high"
)

// Error 是链核心所有操作返回的错误类型
type Error struct {
	Code    int
	Kind    Kind
	Chain   string
	Field   string // InvalidIntent: 出错的请求字段
	Reason  string // Build: 原因码
	Message string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Chain != "" {
		sb.WriteString(e.Chain)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Field != "" {
		fmt.Fprintf(&sb, " (field=%s)", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, " (reason=%s)", e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 匹配哨兵错误，使 errors.Is(err, ErrSigning) 对任意签名错误成立
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Common Errors
var (
	ErrUnsupportedChain = &Error{Code: 30001, Kind: KindUnsupportedChain, Message: "unsupported chain"}
	ErrInvalidIntent    = &Error{Code: 30002, Kind: KindInvalidIntent, Message: "invalid intent"}
	ErrBuild            = &Error{Code: 30003, Kind: KindBuild, Message: "build failed"}
	ErrSigning          = &Error{Code: 30004, Kind: KindSigning, Message: "signing failed"}
	ErrEncoding         = &Error{Code: 30005, Kind: KindEncoding, Message: "encoding error"}
)

// ErrInsufficientFunds 可配合 errors.Is 精确匹配原因码
var ErrInsufficientFunds = &Error{Code: ErrBuild.Code, Kind: KindBuild, Reason: ReasonInsufficientFunds, Message: "insufficient funds"}

func codeOf(k Kind) int {
	switch k {
	case KindUnsupportedChain:
		return ErrUnsupportedChain.Code
	case KindInvalidIntent:
		return ErrInvalidIntent.Code
	case KindBuild:
		return ErrBuild.Code
	case KindSigning:
		return ErrSigning.Code
	case KindEncoding:
		return ErrEncoding.Code
	default:
		return 10001
	}
}

func newError(k Kind, chain, msg string) *Error {
	return &Error{Code: codeOf(k), Kind: k, Chain: chain, Message: msg}
}

// UnsupportedChain 链无法识别或没有注册模块
func UnsupportedChain(chain string) *Error {
	return newError(KindUnsupportedChain, chain, "unsupported chain")
}

// InvalidIntent 请求字段未通过链特定的校验
func InvalidIntent(chain, field, format string, args ...any) *Error {
	e := newError(KindInvalidIntent, chain, fmt.Sprintf(format, args...))
	e.Field = field
	return e
}

// Build 链状态不足或不一致
func Build(chain, reason, format string, args ...any) *Error {
	e := newError(KindBuild, chain, fmt.Sprintf(format, args...))
	e.Reason = reason
	return e
}

// Signing 密钥格式错误、曲线不匹配或密码学操作失败
func Signing(chain string, err error, format string, args ...any) *Error {
	e := newError(KindSigning, chain, fmt.Sprintf(format, args...))
	e.Err = err
	return e
}

// Encoding 输入字节无法解析
func Encoding(chain string, err error, format string, args ...any) *Error {
	e := newError(KindEncoding, chain, fmt.Sprintf(format, args...))
	e.Err = err
	return e
}

// KindOf 返回错误的类别，非本包错误返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Decode tries to convert an error to (code, message)
func Decode(err error) (int, string) {
	if err == nil {
		return 0, "Success"
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Error()
	}
	return 10001, err.Error()
}
