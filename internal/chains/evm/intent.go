package evm

import (
	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type intentResolver struct {
	p *profile
}

func (r *intentResolver) rules() txcore.Rules {
	return txcore.Rules{
		Chain:         r.p.chain,
		Decimals:      18,
		Actions:       []txcore.Action{txcore.ActionTransfer, txcore.ActionContractCall},
		ZeroAmount:    []txcore.Action{txcore.ActionContractCall},
		MaxRecipients: 1,
		MaxMemo:       -1,
		AllowPayload:  true,
		Address:       r.p.validateAddress,
	}
}

func (r *intentResolver) ResolveIntent(req *txcore.Request) (*txcore.Intent, error) {
	intent, err := r.rules().Resolve(req)
	if err != nil {
		return nil, err
	}
	name := r.p.chain.String()

	switch intent.Action {
	case txcore.ActionTransfer:
		if len(intent.Payload) > 0 {
			return nil, errno.InvalidIntent(name, "payload", "plain transfer must not carry calldata")
		}
	case txcore.ActionContractCall:
		if len(intent.Payload) == 0 {
			return nil, errno.InvalidIntent(name, "payload", "contract call requires calldata")
		}
		if intent.Fee.Limit == 0 {
			return nil, errno.InvalidIntent(name, "fee.limit", "contract call requires an explicit gas limit")
		}
	}

	if intent.Fee.Price == nil || intent.Fee.Price.Sign() == 0 {
		return nil, errno.InvalidIntent(name, "fee.price", "gas price (or max fee per gas) is required")
	}
	if intent.Fee.Tip != nil && intent.Fee.Tip.Cmp(intent.Fee.Price) > 0 {
		return nil, errno.InvalidIntent(name, "fee.tip", "priority fee exceeds max fee per gas")
	}
	if intent.Fee.Limit == 0 {
		intent.Fee.Limit = intrinsicGas(nil)
	}

	// 地址统一为链惯用格式
	for i := range intent.Outputs {
		addr, _ := r.p.parseAddress(intent.Outputs[i].Address)
		intent.Outputs[i].Address = r.p.formatAddress(addr)
	}
	from, _ := r.p.parseAddress(intent.From)
	intent.From = r.p.formatAddress(from)
	return intent, nil
}
