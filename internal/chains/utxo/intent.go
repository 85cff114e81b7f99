package utxo

import (
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"

	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

var (
	errDust     = errors.New("amount below dust limit")
	errTooLarge = errors.New("amount exceeds maximum supply")
)

type intentResolver struct {
	p *profile
}

func (r *intentResolver) ResolveIntent(req *txcore.Request) (*txcore.Intent, error) {
	intent, err := txcore.Rules{
		Chain:    r.p.chain,
		Decimals: 8,
		Actions:  []txcore.Action{txcore.ActionTransfer},
		MaxMemo:  MaxMemoBytes,
		Address:  r.p.validateAddress,
		Amount: func(out *txcore.Output) error {
			if !txcore.FitsUint64(out.Amount) || out.Amount.Uint64() > btcutil.MaxSatoshi {
				return errTooLarge
			}
			if out.Amount.Uint64() < DustLimit {
				return errDust
			}
			return nil
		},
	}.Resolve(req)
	if err != nil {
		return nil, err
	}

	name := r.p.chain.String()
	if len(intent.Memo) > MaxMemoBytes {
		return nil, errno.InvalidIntent(name, "memo", "memo longer than %d bytes", MaxMemoBytes)
	}
	if intent.Fee.Tip != nil {
		return nil, errno.InvalidIntent(name, "fee.tip", "priority fee is not supported")
	}
	if intent.Fee.Price == nil || intent.Fee.Price.Sign() == 0 {
		intent.Fee.Price = big.NewInt(DefaultFeeRate)
	}
	if !txcore.FitsUint64(intent.Fee.Price) || intent.Fee.Price.Uint64() > MaxFee {
		return nil, errno.InvalidIntent(name, "fee.price", "fee rate too large")
	}
	return intent, nil
}
