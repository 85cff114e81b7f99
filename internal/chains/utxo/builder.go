package utxo

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"chain-core/pkg/errno"
	"chain-core/pkg/txcore"
)

// 估算 P2PKH 交易大小 (字节)
const (
	txOverhead = 10
	inputSize  = 148
	outputSize = 34
)

func estimateSize(inputs, outputs int, memo string) uint64 {
	size := uint64(txOverhead + inputSize*inputs + outputSize*outputs)
	if memo != "" {
		size += uint64(11 + len(memo))
	}
	return size
}

type builder struct {
	p *profile
}

// BuildTx 按调用方给出的顺序选择 UTXO，找零返回发送方地址。
// 未签名交易的每个输入的 SignatureScript 暂存前序输出的锁定脚本。
func (b *builder) BuildTx(intent *txcore.Intent, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	name := b.p.chain.String()
	if intent == nil || state == nil || len(state.UTXOs) == 0 {
		return nil, errno.Build(name, errno.ReasonMissingState, "unspent outputs are required")
	}
	if intent.Action != txcore.ActionTransfer {
		return nil, errno.Build(name, errno.ReasonUnsupportedAction, "action %q", intent.Action)
	}

	fromPKH, err := b.p.decodeAddress(intent.From)
	if err != nil {
		return nil, errno.InvalidIntent(name, "from", "malformed address")
	}
	prevScript, err := payToPubKeyHash(fromPKH)
	if err != nil {
		return nil, errno.Encoding(name, err, "build script")
	}

	var target uint64
	for _, out := range intent.Outputs {
		if !txcore.FitsUint64(out.Amount) || out.Amount.Uint64() > btcutil.MaxSatoshi {
			return nil, errno.Build(name, errno.ReasonAmountOverflow, "output amount out of range")
		}
		target += out.Amount.Uint64()
	}
	if target > btcutil.MaxSatoshi {
		return nil, errno.Build(name, errno.ReasonAmountOverflow, "total output amount out of range")
	}
	rate := intent.Fee.Price.Uint64()

	// 选币
	nOut := len(intent.Outputs)
	var total, fee uint64
	selected := 0
	for _, u := range state.UTXOs {
		if u.Amount > btcutil.MaxSatoshi {
			return nil, errno.Build(name, errno.ReasonAmountOverflow, "utxo %s:%d amount out of range", u.TxID, u.Vout)
		}
		total += u.Amount
		selected++
		fee = rate * estimateSize(selected, nOut+1, intent.Memo)
		if total >= target+fee {
			break
		}
	}

	feeNoChange := rate * estimateSize(selected, nOut, intent.Memo)
	if total < target+feeNoChange {
		return nil, errno.Build(name, errno.ReasonInsufficientFunds, "need %d (+%d fee), have %d", target, feeNoChange, total)
	}

	var change uint64
	if total >= target+fee && total-target-fee >= DustLimit {
		change = total - target - fee
	} else {
		fee = total - target
	}
	if fee > MaxFee {
		return nil, errno.Build(name, errno.ReasonFeeTooHigh, "fee %d exceeds %d", fee, MaxFee)
	}

	tx := wire.NewMsgTx(b.p.txVersion)
	for _, u := range state.UTXOs[:selected] {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, errno.Build(name, errno.ReasonMissingState, "malformed utxo txid %q", u.TxID)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), prevScript, nil))
	}
	for _, out := range intent.Outputs {
		pkh, err := b.p.decodeAddress(out.Address)
		if err != nil {
			return nil, errno.InvalidIntent(name, "recipients", "malformed address")
		}
		script, err := payToPubKeyHash(pkh)
		if err != nil {
			return nil, errno.Encoding(name, err, "build script")
		}
		tx.AddTxOut(wire.NewTxOut(int64(out.Amount.Uint64()), script))
	}
	if intent.Memo != "" {
		script, err := txscript.NullDataScript([]byte(intent.Memo))
		if err != nil {
			return nil, errno.InvalidIntent(name, "memo", "%v", err)
		}
		tx.AddTxOut(wire.NewTxOut(0, script))
	}
	if change > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(change), prevScript))
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, errno.Encoding(name, err, "serialize transaction")
	}
	return txcore.NewUnsignedTransaction(b.p.chain, buf.Bytes()), nil
}
