package cosmos

import (
	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type intentResolver struct {
	p *profile
}

func (r *intentResolver) ResolveIntent(req *txcore.Request) (*txcore.Intent, error) {
	actions := []txcore.Action{txcore.ActionTransfer}
	if r.p.staking {
		actions = append(actions, txcore.ActionStake)
	}
	rules := txcore.Rules{
		Chain:         r.p.chain,
		Decimals:      r.p.decimals,
		Actions:       actions,
		MaxRecipients: MaxMsgs,
		MaxMemo:       MaxMemoChars,
		AllowAsset:    true,
		Address:       r.p.validateAddress,
	}
	// 质押时 recipient 为验证人 (valoper) 地址
	if req != nil && req.Action == txcore.ActionStake {
		rules.Address = func(s string) error {
			if s == req.From {
				return r.p.validateAddress(s)
			}
			return r.p.validateValidator(s)
		}
		rules.MaxRecipients = 1
	}

	intent, err := rules.Resolve(req)
	if err != nil {
		return nil, err
	}

	name := r.p.chain.String()
	if intent.Action == txcore.ActionStake {
		if err := r.p.validateAddress(intent.From); err != nil {
			return nil, errno.InvalidIntent(name, "from", "malformed address")
		}
	}
	if intent.Fee.Tip != nil {
		return nil, errno.InvalidIntent(name, "fee.tip", "priority fee is not supported")
	}
	if intent.Asset == "" {
		intent.Asset = r.p.denom
	}
	if intent.Fee.Limit == 0 {
		intent.Fee.Limit = DefaultGas
	}
	// Fee.Price 为手续费总额
	if intent.Fee.Price == nil {
		price, err := txcore.ParseBaseUnits(r.p.defaultFee)
		if err != nil {
			return nil, errno.InvalidIntent(name, "fee.price", "%v", err)
		}
		intent.Fee.Price = price
	}
	return intent, nil
}
