package evm

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	errEmpty        = errors.New("empty input")
	errTxType       = errors.New("unsupported transaction type")
	errNonCanonical = errors.New("non-canonical encoding")
	errAccessList   = errors.New("access lists are not supported")
	errUnprotected  = errors.New("pre-EIP-155 transaction without chain id")
)

// legacyPreimage 是 EIP-155 签名原像: rlp([nonce, gasPrice, gas, to, value, data, chainID, 0, 0])
type legacyPreimage struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	R        *big.Int
	S        *big.Int
}

// dynamicPreimage 是 EIP-1559 签名原像 (不含类型前缀)
type dynamicPreimage struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList types.AccessList
}

// txFields 是两种交易格式共用的字段集合
type txFields struct {
	Dynamic  bool
	ChainID  *big.Int
	Nonce    uint64
	GasPrice *big.Int // legacy: gas price; 1559: max fee per gas
	Tip      *big.Int // 仅 1559
	Gas      uint64
	To       *common.Address
	Value    *big.Int
	Data     []byte
}

// preimage 返回签名原像，keccak256(preimage) 即签名摘要
func (f *txFields) preimage() ([]byte, error) {
	if f.Dynamic {
		body, err := rlp.EncodeToBytes(&dynamicPreimage{
			ChainID:    f.ChainID,
			Nonce:      f.Nonce,
			GasTipCap:  f.Tip,
			GasFeeCap:  f.GasPrice,
			Gas:        f.Gas,
			To:         f.To,
			Value:      f.Value,
			Data:       f.Data,
			AccessList: types.AccessList{},
		})
		if err != nil {
			return nil, err
		}
		return append([]byte{types.DynamicFeeTxType}, body...), nil
	}
	return rlp.EncodeToBytes(&legacyPreimage{
		Nonce:    f.Nonce,
		GasPrice: f.GasPrice,
		Gas:      f.Gas,
		To:       f.To,
		Value:    f.Value,
		Data:     f.Data,
		ChainID:  f.ChainID,
		R:        new(big.Int),
		S:        new(big.Int),
	})
}

// toTx 转换为 go-ethereum 的交易对象 (未签名)
func (f *txFields) toTx() *types.Transaction {
	if f.Dynamic {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   f.ChainID,
			Nonce:     f.Nonce,
			GasTipCap: f.Tip,
			GasFeeCap: f.GasPrice,
			Gas:       f.Gas,
			To:        f.To,
			Value:     f.Value,
			Data:      f.Data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    f.Nonce,
		GasPrice: f.GasPrice,
		Gas:      f.Gas,
		To:       f.To,
		Value:    f.Value,
		Data:     f.Data,
	})
}

func (f *txFields) signer() types.Signer {
	return types.LatestSignerForChainID(f.ChainID)
}

// maxFee 返回最大手续费 gas * price
func (f *txFields) maxFee() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(f.Gas), f.GasPrice)
}

// parsePreimage 解析未签名交易，要求输入为规范编码
func parsePreimage(raw []byte) (*txFields, error) {
	if len(raw) == 0 {
		return nil, errEmpty
	}

	var f *txFields
	switch {
	case raw[0] == types.DynamicFeeTxType:
		var p dynamicPreimage
		if err := rlp.DecodeBytes(raw[1:], &p); err != nil {
			return nil, err
		}
		if len(p.AccessList) > 0 {
			return nil, errAccessList
		}
		f = &txFields{
			Dynamic:  true,
			ChainID:  p.ChainID,
			Nonce:    p.Nonce,
			GasPrice: p.GasFeeCap,
			Tip:      p.GasTipCap,
			Gas:      p.Gas,
			To:       p.To,
			Value:    p.Value,
			Data:     p.Data,
		}
	case raw[0] >= 0xc0:
		var p legacyPreimage
		if err := rlp.DecodeBytes(raw, &p); err != nil {
			return nil, err
		}
		if p.R.Sign() != 0 || p.S.Sign() != 0 {
			return nil, errNonCanonical
		}
		f = &txFields{
			ChainID:  p.ChainID,
			Nonce:    p.Nonce,
			GasPrice: p.GasPrice,
			Gas:      p.Gas,
			To:       p.To,
			Value:    p.Value,
			Data:     p.Data,
		}
	default:
		return nil, errTxType
	}

	again, err := f.preimage()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, raw) {
		return nil, errNonCanonical
	}
	return f, nil
}

// isUnsignedLegacy 判断 legacy RLP 是否为未签名原像 (r = s = 0)
func isUnsignedLegacy(raw []byte) bool {
	var p legacyPreimage
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return false
	}
	return p.R.Sign() == 0 && p.S.Sign() == 0
}

// isUnsigned 判断输入是否为未签名原像
func isUnsigned(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	if raw[0] == types.DynamicFeeTxType {
		var p dynamicPreimage
		return rlp.DecodeBytes(raw[1:], &p) == nil
	}
	return raw[0] >= 0xc0 && isUnsignedLegacy(raw)
}

// fieldsFromTx 从已签名交易恢复字段
func fieldsFromTx(tx *types.Transaction) (*txFields, error) {
	switch tx.Type() {
	case types.LegacyTxType:
		if !tx.Protected() {
			return nil, errUnprotected
		}
		return &txFields{
			ChainID:  tx.ChainId(),
			Nonce:    tx.Nonce(),
			GasPrice: tx.GasPrice(),
			Gas:      tx.Gas(),
			To:       tx.To(),
			Value:    tx.Value(),
			Data:     tx.Data(),
		}, nil
	case types.DynamicFeeTxType:
		if len(tx.AccessList()) > 0 {
			return nil, errAccessList
		}
		return &txFields{
			Dynamic:  true,
			ChainID:  tx.ChainId(),
			Nonce:    tx.Nonce(),
			GasPrice: tx.GasFeeCap(),
			Tip:      tx.GasTipCap(),
			Gas:      tx.Gas(),
			To:       tx.To(),
			Value:    tx.Value(),
			Data:     tx.Data(),
		}, nil
	default:
		return nil, errTxType
	}
}

// rawSignature 返回 65 字节 [R || S || recid] 签名
func rawSignature(tx *types.Transaction, chainID *big.Int) []byte {
	v, r, s := tx.RawSignatureValues()
	recid := new(big.Int).Set(v)
	if tx.Type() == types.LegacyTxType {
		// v = recid + 35 + 2 * chainID
		recid.Sub(recid, big.NewInt(35))
		recid.Sub(recid, new(big.Int).Lsh(chainID, 1))
	}
	sig := make([]byte, crypto.SignatureLength)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(recid.Uint64())
	return sig
}

// intrinsicGas 计算 EIP-2028 下的基础 gas
func intrinsicGas(data []byte) uint64 {
	gas := params.TxGas
	for _, b := range data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}
	return gas
}
