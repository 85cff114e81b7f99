package txcore

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"chain-core/pkg/crypto_util"
)

// ID 返回 Intent 的 blake3 指纹 (16 字节 hex)，仅用于日志关联
func (i *Intent) ID() string {
	if i == nil {
		return ""
	}
	h := new(bytes.Buffer)
	writeField(h, []byte(i.Chain))
	writeField(h, []byte(i.Action))
	writeField(h, []byte(i.From))
	for _, out := range i.Outputs {
		writeField(h, []byte(out.Address))
		writeField(h, bigBytes(out.Amount))
	}
	writeField(h, []byte(i.Asset))
	writeField(h, []byte(i.Memo))

	var limit [8]byte
	binary.BigEndian.PutUint64(limit[:], i.Fee.Limit)
	writeField(h, limit[:])
	writeField(h, bigBytes(i.Fee.Price))
	writeField(h, bigBytes(i.Fee.Tip))
	writeField(h, i.Payload)
	// blake3 输出可任意截断，取前 16 字节
	return hex.EncodeToString(crypto_util.Blake3(h.Bytes())[:16])
}

// Total 返回所有输出金额之和
func (i *Intent) Total() *big.Int {
	sum := new(big.Int)
	for _, out := range i.Outputs {
		if out.Amount != nil {
			sum.Add(sum, out.Amount)
		}
	}
	return sum
}

// 每个字段带长度前缀，避免拼接歧义
func writeField(h *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}
