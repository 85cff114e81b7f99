package evm

import (
	"math/big"
	"strings"

	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type builder struct {
	p *profile
}

// maxUint256 value 字段上限
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func (b *builder) BuildTx(intent *txcore.Intent, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	name := b.p.chain.String()
	if intent == nil {
		return nil, errno.Build(name, errno.ReasonMissingState, "missing intent")
	}
	if state == nil {
		return nil, errno.Build(name, errno.ReasonMissingState, "chain state (nonce) is required")
	}
	if id := strings.TrimSpace(state.ChainID); id != "" && id != b.p.chainID.String() {
		return nil, errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", id, b.p.chainID)
	}
	if intent.Action != txcore.ActionTransfer && intent.Action != txcore.ActionContractCall {
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "action %q", intent.Action)
	}
	if len(intent.Outputs) != 1 {
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "exactly one recipient is required")
	}

	out := intent.Outputs[0]
	if out.Amount.Cmp(maxUint256) > 0 {
		return nil, errno.Build(name, errno.ReasonAmountOverflow, "value exceeds 256 bits")
	}
	to, err := b.p.parseAddress(out.Address)
	if err != nil {
		return nil, errno.InvalidIntent(name, "recipients[0].address", "malformed address")
	}

	gas := intent.Fee.Limit
	if floor := intrinsicGas(intent.Payload); gas < floor {
		return nil, errno.InvalidIntent(name, "fee.limit", "gas limit %d below intrinsic gas %d", gas, floor)
	}
	if gas > MaxGas {
		return nil, errno.Build(name, errno.ReasonFeeTooHigh, "gas limit %d exceeds %d", gas, MaxGas)
	}
	if intent.Fee.Price == nil {
		return nil, errno.InvalidIntent(name, "fee.price", "gas price is required")
	}

	f := &txFields{
		Dynamic:  intent.Fee.Tip != nil,
		ChainID:  new(big.Int).Set(b.p.chainID),
		Nonce:    state.Sequence,
		GasPrice: new(big.Int).Set(intent.Fee.Price),
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int).Set(out.Amount),
		Data:     intent.Payload,
	}
	if f.Dynamic {
		f.Tip = new(big.Int).Set(intent.Fee.Tip)
	}

	raw, err := f.preimage()
	if err != nil {
		return nil, errno.Encoding(name, err, "rlp encode")
	}
	return txcore.NewUnsignedTransaction(b.p.chain, raw), nil
}
