package cosmos

import (
	"encoding/json"
	"strconv"
	"strings"

	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

type builder struct {
	p *profile
}

// BuildTx 生成 amino JSON sign doc，需要 ChainState 中的 account number 与 sequence
func (b *builder) BuildTx(intent *txcore.Intent, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	name := b.p.chain.String()
	if intent == nil || state == nil {
		return nil, errno.Build(name, errno.ReasonMissingState, "account number and sequence are required")
	}
	chainID := strings.TrimSpace(state.ChainID)
	if chainID == "" {
		chainID = b.p.chainID
	} else if chainID != b.p.chainID {
		return nil, errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", chainID, b.p.chainID)
	}

	msgs := make([]aminoMsg, 0, len(intent.Outputs))
	switch intent.Action {
	case txcore.ActionTransfer:
		for _, out := range intent.Outputs {
			msg, err := newMsg(b.p.msgType("MsgSend"), &msgSend{
				Amount:      []coin{{Amount: out.Amount.String(), Denom: intent.Asset}},
				FromAddress: intent.From,
				ToAddress:   out.Address,
			})
			if err != nil {
				return nil, errno.Encoding(name, err, "encode MsgSend")
			}
			msgs = append(msgs, msg)
		}
	case txcore.ActionStake:
		if !b.p.staking || len(intent.Outputs) != 1 {
			return nil, errno.Build(name, errno.ReasonUnsupportedAction, "staking requires exactly one validator")
		}
		out := intent.Outputs[0]
		msg, err := newMsg(b.p.msgType("MsgDelegate"), &msgDelegate{
			Amount:           coin{Amount: out.Amount.String(), Denom: intent.Asset},
			DelegatorAddress: intent.From,
			ValidatorAddress: out.Address,
		})
		if err != nil {
			return nil, errno.Encoding(name, err, "encode MsgDelegate")
		}
		msgs = append(msgs, msg)
	default:
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "action %q", intent.Action)
	}

	fee := stdFee{Amount: []coin{}, Gas: strconv.FormatUint(intent.Fee.Limit, 10)}
	if intent.Fee.Price != nil && intent.Fee.Price.Sign() > 0 {
		fee.Amount = append(fee.Amount, coin{Amount: intent.Fee.Price.String(), Denom: b.p.denom})
	}

	raw, err := json.Marshal(&signDoc{
		AccountNumber: strconv.FormatUint(state.AccountNumber, 10),
		ChainID:       chainID,
		Fee:           fee,
		Memo:          intent.Memo,
		Msgs:          msgs,
		Sequence:      strconv.FormatUint(state.Sequence, 10),
	})
	if err != nil {
		return nil, errno.Encoding(name, err, "encode sign doc")
	}
	return txcore.NewUnsignedTransaction(b.p.chain, raw), nil
}
