package account

import (
	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type intentResolver struct {
	p *profile
}

func (r *intentResolver) ResolveIntent(req *txcore.Request) (*txcore.Intent, error) {
	rules := txcore.Rules{
		Chain:         r.p.chain,
		Decimals:      r.p.decimals,
		Actions:       r.p.actions(),
		ZeroAmount:    []txcore.Action{txcore.ActionContractCall},
		MaxRecipients: r.p.maxOutputs,
		MaxMemo:       -1,
		AllowAsset:    r.p.asset,
		AllowPayload:  r.p.contracts,
		Address:       r.p.validateAddress,
		Amount: func(out *txcore.Output) error {
			if !txcore.FitsUint128(out.Amount) {
				return txcore.ErrAmountTooLarge
			}
			return nil
		},
	}
	if r.p.memo {
		rules.MaxMemo = MaxMemoBytes
	}
	if req != nil && req.Action == txcore.ActionStake {
		rules.MaxRecipients = 1
	}

	intent, err := rules.Resolve(req)
	if err != nil {
		return nil, err
	}

	name := r.p.chain.String()
	if len(intent.Memo) > MaxMemoBytes {
		return nil, errno.InvalidIntent(name, "memo", "memo longer than %d bytes", MaxMemoBytes)
	}
	switch intent.Action {
	case txcore.ActionContractCall:
		if len(intent.Payload) == 0 {
			return nil, errno.InvalidIntent(name, "payload", "contract call requires a payload")
		}
	default:
		if len(intent.Payload) > 0 {
			return nil, errno.InvalidIntent(name, "payload", "payload is only allowed for contract calls")
		}
	}
	if intent.Fee.Tip != nil {
		return nil, errno.InvalidIntent(name, "fee.tip", "priority fee is not supported")
	}

	if intent.Fee.Limit == 0 {
		intent.Fee.Limit = r.p.defaultLimit
	}
	if intent.Fee.Price == nil {
		price, err := txcore.ParseBaseUnits(r.p.defaultPrice)
		if err != nil {
			return nil, errno.InvalidIntent(name, "fee.price", "%v", err)
		}
		intent.Fee.Price = price
	}
	if !txcore.FitsUint128(intent.Fee.Price) {
		return nil, errno.InvalidIntent(name, "fee.price", "%v", txcore.ErrAmountTooLarge)
	}
	return intent, nil
}
