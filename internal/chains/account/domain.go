package account

import (
	"encoding/binary"
	"errors"

	"github.com/aptos-labs/serde-reflection/serde-generate/runtime/golang/bcs"

	"chain-core/pkg/crypto_util"
)

var errMessageTooLong = errors.New("message too long")

func sha256Hash(data ...[]byte) []byte     { return crypto_util.SHA256(data...) }
func sha3Hash(data ...[]byte) []byte       { return crypto_util.SHA3_256(data...) }
func blake2bHash(data ...[]byte) []byte    { return crypto_util.Blake2b256(data...) }
func sha512HalfHash(data ...[]byte) []byte { return crypto_util.SHA512Half(data...) }

// hashSigned 交易 ID 为已签名编码的哈希
func hashSigned(h func(...[]byte) []byte) func(unsigned, signed, sig []byte) []byte {
	return func(_, signed, _ []byte) []byte {
		return h(signed)
	}
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Sui: intent 前缀 [scope, version, app_id]，scope 0 为交易，3 为个人消息

var (
	suiTxIntent  = []byte{0, 0, 0}
	suiMsgIntent = []byte{3, 0, 0}
)

func suiTxInput(raw []byte) []byte {
	return crypto_util.Blake2b256(suiTxIntent, raw)
}

// suiMsgInput 个人消息先做 BCS vector<u8> 编码
func suiMsgInput(msg []byte) ([]byte, error) {
	s := bcs.NewSerializer()
	if err := s.SerializeBytes(msg); err != nil {
		return nil, err
	}
	return crypto_util.Blake2b256(suiMsgIntent, s.GetBytes()), nil
}

func suiTxID(unsigned, _, _ []byte) []byte {
	return crypto_util.Blake2b256([]byte("TransactionData::"), unsigned)
}

// Aptos: 交易以 sha3("APTOS::RawTransaction") 为盐，ed25519 直接对拼接结果签名

var (
	aptosRawTxSalt = crypto_util.SHA3_256([]byte("APTOS::RawTransaction"))
	aptosTxSalt    = crypto_util.SHA3_256([]byte("APTOS::Transaction"))
)

func aptosTxInput(raw []byte) []byte {
	return concat(aptosRawTxSalt, raw)
}

func aptosMsgInput(msg []byte) ([]byte, error) {
	return concat([]byte("APTOS\nmessage: "), msg), nil
}

func aptosTxID(_, signed, _ []byte) []byte {
	// 0x00 为 UserTransaction 变体
	return crypto_util.SHA3_256(aptosTxSalt, []byte{0}, signed)
}

// Solana: 交易对消息原文签名，离线消息带 "\xffsolana offchain" 签名域

var solanaOffchain = []byte("\xffsolana offchain")

func solanaTxInput(raw []byte) []byte {
	return raw
}

func solanaMsgInput(msg []byte) ([]byte, error) {
	if len(msg) > 0xffff {
		return nil, errMessageTooLong
	}
	format := byte(0) // restricted ASCII
	for _, c := range msg {
		if c < 0x20 || c > 0x7e {
			format = 1 // UTF-8
			break
		}
	}
	header := make([]byte, 4)
	header[0] = 0 // version
	header[1] = format
	binary.LittleEndian.PutUint16(header[2:], uint16(len(msg)))
	return concat(solanaOffchain, header, msg), nil
}

// solanaTxID 交易 ID 即第一个签名
func solanaTxID(_, _, sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	return out
}

// Substrate: 超过 256 字节的 payload 先做 blake2b-256，消息用 <Bytes> 包裹

const substrateMaxPayload = 256

func substrateTxInput(raw []byte) []byte {
	if len(raw) > substrateMaxPayload {
		return crypto_util.Blake2b256(raw)
	}
	return raw
}

func substrateMsgInput(msg []byte) ([]byte, error) {
	return concat([]byte("<Bytes>"), msg, []byte("</Bytes>")), nil
}

// TON: 交易对 body 哈希签名，消息使用 ton-connect 前缀

func tonTxInput(raw []byte) []byte {
	return crypto_util.SHA256(raw)
}

func tonMsgInput(msg []byte) ([]byte, error) {
	return crypto_util.SHA256([]byte{0xff, 0xff}, []byte("ton-connect"), crypto_util.SHA256(msg)), nil
}

// ICP: 请求 ID 前加 "\x0Aic-request" 域分隔符，secp256k1 对其 sha256 签名

func icpTxInput(raw []byte) []byte {
	return crypto_util.SHA256([]byte("\x0Aic-request"), crypto_util.SHA256(raw))
}

func icpMsgInput(msg []byte) ([]byte, error) {
	return crypto_util.SHA256([]byte("\x0Aic-message"), crypto_util.SHA256(msg)), nil
}

// Ripple: STX\0 交易签名前缀，MSG\0 消息前缀，TXN\0 交易 ID 前缀

var (
	rippleTxPrefix  = []byte{'S', 'T', 'X', 0}
	rippleMsgPrefix = []byte{'M', 'S', 'G', 0}
	rippleIDPrefix  = []byte{'T', 'X', 'N', 0}
)

func rippleTxInput(raw []byte) []byte {
	return crypto_util.SHA512Half(rippleTxPrefix, raw)
}

func rippleMsgInput(msg []byte) ([]byte, error) {
	return crypto_util.SHA512Half(rippleMsgPrefix, msg), nil
}

func rippleTxID(_, signed, _ []byte) []byte {
	return crypto_util.SHA512Half(rippleIDPrefix, signed)
}

// Pactus: 交易对 body 的 blake2b 签名，消息带固定前缀

var pactusMsgPrefix = []byte("PACTUS Signed Message:\n")

func pactusTxInput(raw []byte) []byte {
	return crypto_util.Blake2b256(raw)
}

func pactusMsgInput(msg []byte) ([]byte, error) {
	return crypto_util.Blake2b256(pactusMsgPrefix, msg), nil
}
