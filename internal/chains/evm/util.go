package evm

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

type util struct {
	p *profile
}

func (u *util) TxHash(raw []byte) ([]byte, error) {
	if isUnsigned(raw) {
		if _, err := parsePreimage(raw); err != nil {
			return nil, errno.Encoding(u.p.chain.String(), err, "decode unsigned transaction")
		}
		return crypto.Keccak256(raw), nil
	}
	tx, err := u.parseSigned(raw)
	if err != nil {
		return nil, err
	}
	h := tx.Hash()
	return h.Bytes(), nil
}

func (u *util) DecodeUnsigned(raw []byte) (*txcore.UnsignedTransaction, error) {
	if _, err := parsePreimage(raw); err != nil {
		return nil, errno.Encoding(u.p.chain.String(), err, "decode unsigned transaction")
	}
	return txcore.NewUnsignedTransaction(u.p.chain, raw), nil
}

func (u *util) Decode(raw []byte) (*txcore.Decoded, error) {
	name := u.p.chain.String()
	if isUnsigned(raw) {
		f, err := parsePreimage(raw)
		if err != nil {
			return nil, errno.Encoding(name, err, "decode unsigned transaction")
		}
		return u.view(f, raw), nil
	}

	tx, err := u.parseSigned(raw)
	if err != nil {
		return nil, err
	}
	f, err := fieldsFromTx(tx)
	if err != nil {
		return nil, errno.Encoding(name, err, "decode signed transaction")
	}
	pre, err := f.preimage()
	if err != nil {
		return nil, errno.Encoding(name, err, "rebuild preimage")
	}
	sig := rawSignature(tx, f.ChainID)
	pub, err := crypto.SigToPub(crypto.Keccak256(pre), sig)
	if err != nil {
		return nil, errno.Encoding(name, err, "recover signer")
	}

	d := u.view(f, pre)
	d.Signed = true
	d.From = u.p.formatAddress(crypto.PubkeyToAddress(*pub))
	d.Signatures = []txcore.Signature{{
		Domain:    txcore.DomainTransaction,
		Scheme:    keys.SchemeSecp256k1,
		PublicKey: crypto.FromECDSAPub(pub),
		Bytes:     sig,
	}}
	d.Fields["hash"] = tx.Hash().Hex()
	return d, nil
}

func (u *util) view(f *txFields, preimage []byte) *txcore.Decoded {
	d := &txcore.Decoded{
		Chain:    u.p.chain,
		Unsigned: txcore.NewUnsignedTransaction(u.p.chain, preimage),
		Fee:      f.maxFee(),
		Sequence: f.Nonce,
		Fields: map[string]string{
			"chain_id": f.ChainID.String(),
			"gas":      fmt.Sprintf("%d", f.Gas),
		},
	}
	if f.To != nil {
		d.Outputs = []txcore.Output{{Address: u.p.formatAddress(*f.To), Amount: f.Value}}
	}
	if f.Dynamic {
		d.Fields["type"] = "eip1559"
		d.Fields["max_fee_per_gas"] = f.GasPrice.String()
		d.Fields["max_priority_fee_per_gas"] = f.Tip.String()
	} else {
		d.Fields["type"] = "legacy"
		d.Fields["gas_price"] = f.GasPrice.String()
	}
	if len(f.Data) > 0 {
		d.Fields["data"] = "0x" + hex.EncodeToString(f.Data)
	}
	return d
}

func (u *util) parseSigned(raw []byte) (*types.Transaction, error) {
	name := u.p.chain.String()
	if len(raw) == 0 {
		return nil, errno.Encoding(name, errEmpty, "decode transaction")
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errno.Encoding(name, err, "decode signed transaction")
	}
	return tx, nil
}

// Validate 广播前检查: 大小、chain id、intrinsic gas、tip <= fee cap
func (u *util) Validate(raw []byte) error {
	name := u.p.chain.String()
	if len(raw) > u.p.maxTxBytes {
		return errno.Encoding(name, nil, "transaction size %d exceeds %d bytes", len(raw), u.p.maxTxBytes)
	}

	var f *txFields
	if isUnsigned(raw) {
		parsed, err := parsePreimage(raw)
		if err != nil {
			return errno.Encoding(name, err, "decode unsigned transaction")
		}
		f = parsed
	} else {
		tx, err := u.parseSigned(raw)
		if err != nil {
			return err
		}
		parsed, err := fieldsFromTx(tx)
		if err != nil {
			return errno.Encoding(name, err, "decode signed transaction")
		}
		if _, err := types.Sender(parsed.signer(), tx); err != nil {
			return errno.Encoding(name, err, "invalid signature")
		}
		f = parsed
	}

	if f.ChainID.Cmp(u.p.chainID) != 0 {
		return errno.Build(name, errno.ReasonChainIDMismatch, "chain id %s does not match %s", f.ChainID, u.p.chainID)
	}
	if floor := intrinsicGas(f.Data); f.Gas < floor {
		return errno.Encoding(name, nil, "gas %d below intrinsic gas %d", f.Gas, floor)
	}
	if f.Dynamic && f.Tip.Cmp(f.GasPrice) > 0 {
		return errno.Encoding(name, nil, "max priority fee %s exceeds max fee %s", f.Tip, f.GasPrice)
	}
	return nil
}

// VerifyTx 在交易域 (keccak256 签名原像) 校验签名
func (u *util) VerifyTx(payload []byte, sig *txcore.Signature) error {
	if err := verify(crypto.Keccak256(payload), sig); err != nil {
		return errno.Signing(u.p.chain.String(), err, "verify transaction signature")
	}
	return nil
}
