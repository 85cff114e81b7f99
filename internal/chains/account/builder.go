package account

import (
	"math/big"
	"strings"

	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type builder struct {
	p *profile
}

// BuildTx 生成 BCS 编码的未签名交易体。
// 需要 ChainState 中的 sequence，部分链还需要最近区块哈希或过期时间。
func (b *builder) BuildTx(intent *txcore.Intent, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	name := b.p.chain.String()
	if intent == nil || state == nil {
		return nil, errno.Build(name, errno.ReasonMissingState, "account sequence is required")
	}
	chainID := strings.TrimSpace(state.ChainID)
	if chainID == "" {
		chainID = b.p.chainID
	} else if chainID != b.p.chainID {
		return nil, errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", chainID, b.p.chainID)
	}
	if b.p.needsRef && len(state.RecentBlock) != 32 {
		return nil, errno.Build(name, errno.ReasonMissingState, "a 32-byte recent block hash is required")
	}
	if b.p.needsExpiry && state.Expiration == 0 {
		return nil, errno.Build(name, errno.ReasonMissingState, "expiration is required")
	}

	switch intent.Action {
	case txcore.ActionTransfer:
	case txcore.ActionStake:
		if !b.p.staking || len(intent.Outputs) != 1 {
			return nil, errno.Build(name, errno.ReasonUnsupportedAction, "staking requires exactly one validator")
		}
	case txcore.ActionContractCall:
		if !b.p.contracts {
			return nil, errno.Build(name, errno.ReasonUnsupportedAction, "contract calls are not supported")
		}
	default:
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "action %q", intent.Action)
	}
	if len(intent.Outputs) == 0 || len(intent.Outputs) > b.p.maxOutputs {
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "output count %d out of range", len(intent.Outputs))
	}

	sender, err := b.p.codec.decode(intent.From)
	if err != nil {
		return nil, errno.InvalidIntent(name, "from", "malformed address")
	}
	outputs := make([]output, 0, len(intent.Outputs))
	for _, out := range intent.Outputs {
		addr, err := b.p.codec.decode(out.Address)
		if err != nil {
			return nil, errno.InvalidIntent(name, "recipients", "malformed address %q", out.Address)
		}
		if out.Amount == nil || out.Amount.Sign() < 0 || !txcore.FitsUint128(out.Amount) {
			return nil, errno.Build(name, errno.ReasonAmountOverflow, "amount %v does not fit in u128", out.Amount)
		}
		outputs = append(outputs, output{Address: addr, Amount: new(big.Int).Set(out.Amount)})
	}

	price := new(big.Int)
	if intent.Fee.Price != nil {
		price.Set(intent.Fee.Price)
	}
	if !txcore.FitsUint128(maxFee(intent.Fee.Limit, price)) {
		return nil, errno.Build(name, errno.ReasonFeeTooHigh, "fee %d x %s overflows u128", intent.Fee.Limit, price)
	}

	body := &body{
		Action:     intent.Action,
		ChainID:    chainID,
		Sender:     sender,
		Sequence:   state.Sequence,
		Reference:  state.RecentBlock,
		Expiration: state.Expiration,
		Outputs:    outputs,
		Asset:      intent.Asset,
		FeeLimit:   intent.Fee.Limit,
		FeePrice:   price,
		Memo:       intent.Memo,
		Payload:    intent.Payload,
	}
	if !b.p.needsRef {
		body.Reference = nil
	}
	raw, err := body.encode()
	if err != nil {
		return nil, errno.Encoding(name, err, "encode transaction")
	}
	if len(raw) > b.p.maxTxBytes {
		return nil, errno.Encoding(name, nil, "transaction size %d exceeds %d bytes", len(raw), b.p.maxTxBytes)
	}
	return txcore.NewUnsignedTransaction(b.p.chain, raw), nil
}

// maxFee limit 为 0 的链 price 即手续费总额
func maxFee(limit uint64, price *big.Int) *big.Int {
	if limit == 0 {
		return new(big.Int).Set(price)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(limit), price)
}
