package txcore

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"chain-core/pkg/chain"
	"chain-core/pkg/errno"
)

// Rules 描述一条链对通用请求的校验规则，各链的 IntentResolver 在此基础上实现
type Rules struct {
	Chain         chain.Type
	Decimals      int32
	Actions       []Action
	ZeroAmount    []Action // 允许金额为 0 的操作 (例如合约调用)
	MaxRecipients int // 0 表示不限制
	MaxMemo       int // 负数表示不支持 memo，0 表示不限制 (按字符计)
	AllowAsset    bool
	AllowPayload  bool
	Address       func(string) error
	// Amount 可选，对单个输出金额做额外的范围检查
	Amount func(*Output) error
}

// Resolve 按规则校验请求并生成 Intent
func (r Rules) Resolve(req *Request) (*Intent, error) {
	name := r.Chain.String()
	if req == nil {
		return nil, errno.InvalidIntent(name, "request", "empty request")
	}

	action := req.Action
	if action == "" {
		action = ActionTransfer
	}
	if !slices.Contains(r.Actions, action) {
		return nil, errno.InvalidIntent(name, "action", "action %q not supported", action)
	}

	if req.From == "" {
		return nil, errno.InvalidIntent(name, "from", "missing sender")
	}
	if err := r.Address(req.From); err != nil {
		return nil, errno.InvalidIntent(name, "from", "malformed address: %v", err)
	}

	if len(req.Recipients) == 0 {
		return nil, errno.InvalidIntent(name, "recipients", "at least one recipient is required")
	}
	if r.MaxRecipients > 0 && len(req.Recipients) > r.MaxRecipients {
		return nil, errno.InvalidIntent(name, "recipients", "at most %d recipient(s) allowed, got %d", r.MaxRecipients, len(req.Recipients))
	}

	decimals := r.Decimals
	if req.Decimals != nil {
		if *req.Decimals < 0 || *req.Decimals > 36 {
			return nil, errno.InvalidIntent(name, "decimals", "decimals out of range: %d", *req.Decimals)
		}
		decimals = *req.Decimals
	}

	outputs := make([]Output, 0, len(req.Recipients))
	for i, rcpt := range req.Recipients {
		field := fmt.Sprintf("recipients[%d]", i)
		if err := r.Address(rcpt.Address); err != nil {
			return nil, errno.InvalidIntent(name, field+".address", "malformed address")
		}
		var amount *big.Int
		if slices.Contains(r.ZeroAmount, action) && isZeroAmount(rcpt.Amount) {
			amount = new(big.Int)
		} else {
			parsed, err := ParseAmount(rcpt.Amount, decimals)
			if err != nil {
				return nil, errno.InvalidIntent(name, field+".amount", "%v", err)
			}
			amount = parsed
		}
		out := Output{Address: rcpt.Address, Amount: amount}
		if r.Amount != nil {
			if err := r.Amount(&out); err != nil {
				return nil, errno.InvalidIntent(name, field+".amount", "%v", err)
			}
		}
		outputs = append(outputs, out)
	}

	if req.Memo != "" {
		if r.MaxMemo < 0 {
			return nil, errno.InvalidIntent(name, "memo", "memo not supported")
		}
		if r.MaxMemo > 0 && utf8.RuneCountInString(req.Memo) > r.MaxMemo {
			return nil, errno.InvalidIntent(name, "memo", "memo longer than %d characters", r.MaxMemo)
		}
	}
	if req.Asset != "" && !r.AllowAsset {
		return nil, errno.InvalidIntent(name, "asset", "only the native asset is supported")
	}
	if len(req.Payload) > 0 && !r.AllowPayload {
		return nil, errno.InvalidIntent(name, "payload", "payload not supported")
	}

	price, err := ParseBaseUnits(req.Fee.Price)
	if err != nil {
		return nil, errno.InvalidIntent(name, "fee.price", "%v", err)
	}
	tip, err := ParseBaseUnits(req.Fee.Tip)
	if err != nil {
		return nil, errno.InvalidIntent(name, "fee.tip", "%v", err)
	}

	var payload []byte
	if len(req.Payload) > 0 {
		payload = clone(req.Payload)
	}
	return &Intent{
		Chain:   r.Chain,
		Action:  action,
		From:    req.From,
		Outputs: outputs,
		Asset:   req.Asset,
		Memo:    req.Memo,
		Fee:     Fee{Limit: req.Fee.Limit, Price: price, Tip: tip},
		Payload: payload,
	}, nil
}

func isZeroAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsZero()
}
