package utxo

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/txcore"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testFrom     = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	txidA        = "0437cd7f8525ceed2324359c2d0ba26006d92d856a9c20fa0241106ee5a597c9"
	txidB        = "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"
)

func newModule(t *testing.T, c chain.Type) (txcore.Module, *profile) {
	t.Helper()
	m, err := New(c, config.ChainConfig{}, config.LimitsConfig{})
	require.NoError(t, err)
	return m, m.Builder().(*builder).p
}

func testKey(t *testing.T) *keys.Material {
	t.Helper()
	m, err := keys.FromMnemonic(testMnemonic, "", "m/44'/0'/0'/0/0")
	require.NoError(t, err)
	return m
}

func recipient(p *profile) string {
	return p.encodeAddress(bytes.Repeat([]byte{0x11}, 20))
}

func request(from, to, amount string) *txcore.Request {
	return &txcore.Request{
		From:       from,
		Recipients: []txcore.Recipient{{Address: to, Amount: amount}},
		Fee:        txcore.FeePreference{Price: "10"},
	}
}

func state() *txcore.ChainState {
	return &txcore.ChainState{UTXOs: []txcore.UTXO{
		{TxID: txidA, Vout: 0, Amount: 30_000},
		{TxID: txidB, Vout: 1, Amount: 100_000},
	}}
}

func build(t *testing.T, m txcore.Module, req *txcore.Request, st *txcore.ChainState) *txcore.UnsignedTransaction {
	t.Helper()
	intent, err := m.Intent().ResolveIntent(req)
	require.NoError(t, err)
	utx, err := m.Builder().BuildTx(intent, st)
	require.NoError(t, err)
	return utx
}

func TestAddressCodec(t *testing.T) {
	_, p := newModule(t, chain.Bitcoin)
	pkh := bytes.Repeat([]byte{0}, 20)
	assert.Equal(t, "1111111111111111111114oLvT2", p.encodeAddress(pkh))

	got, err := p.decodeAddress(testFrom)
	require.NoError(t, err)
	assert.Equal(t, testFrom, p.encodeAddress(got))

	_, err = p.decodeAddress(testFrom[:len(testFrom)-1] + "B")
	assert.ErrorIs(t, err, errBadChecksum)

	// Zcash 两字节前缀 (t1...)
	_, z := newModule(t, chain.Zcash)
	assert.True(t, strings.HasPrefix(z.encodeAddress(pkh), "t1"))
	_, err = z.decodeAddress(testFrom)
	assert.Error(t, err)

	// 比特币地址不能用于 Komodo
	_, kmd := newModule(t, chain.Komodo)
	assert.True(t, strings.HasPrefix(kmd.encodeAddress(pkh), "R"))
	_, err = kmd.decodeAddress(testFrom)
	assert.ErrorIs(t, err, errBadVersion)
}

func TestKnownAddressFromMnemonic(t *testing.T) {
	_, p := newModule(t, chain.Bitcoin)
	k, err := keys.OpenSecp256k1(testKey(t))
	require.NoError(t, err)
	defer k.Close()
	assert.Equal(t, testFrom, p.addressFromPubKey(k.PubKey().SerializeCompressed()))
}

func TestResolveIntent(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)

	intent, err := m.Intent().ResolveIntent(request(testFrom, recipient(p), "0.0005"))
	require.NoError(t, err)
	assert.Equal(t, "50000", intent.Outputs[0].Amount.String())

	req := request(testFrom, recipient(p), "0.0005")
	req.Fee.Price = ""
	intent, err = m.Intent().ResolveIntent(req)
	require.NoError(t, err)
	assert.Equal(t, "1", intent.Fee.Price.String())

	tests := []struct {
		name  string
		mut   func(r *txcore.Request)
		field string
	}{
		{"dust", func(r *txcore.Request) { r.Recipients[0].Amount = "0.00000545" }, "recipients[0].amount"},
		{"supply", func(r *txcore.Request) { r.Recipients[0].Amount = "21000001" }, "recipients[0].amount"},
		{"memo bytes", func(r *txcore.Request) { r.Memo = strings.Repeat("é", 41) }, "memo"},
		{"tip", func(r *txcore.Request) { r.Fee.Tip = "1" }, "fee.tip"},
		{"bad address", func(r *txcore.Request) { r.Recipients[0].Address = "0OIl-not-base58" }, "recipients[0].address"},
		{"stake", func(r *txcore.Request) { r.Action = txcore.ActionStake }, "action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(testFrom, recipient(p), "0.0005")
			tt.mut(req)
			_, err := m.Intent().ResolveIntent(req)
			require.ErrorIs(t, err, errno.ErrInvalidIntent)
			assert.Contains(t, err.Error(), "field="+tt.field)
		})
	}
}

func TestBuildTx_CoinSelectionAndChange(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())

	tx, err := parseUnsigned(utx.Bytes())
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2, "第一个 UTXO 不够，需要两个")
	assert.Equal(t, txidA, tx.TxIn[0].PreviousOutPoint.Hash.String())
	assert.Equal(t, uint32(1), tx.TxIn[1].PreviousOutPoint.Index)

	require.Len(t, tx.TxOut, 2)
	assert.Equal(t, int64(50_000), tx.TxOut[0].Value)
	fee := uint64(10) * estimateSize(2, 2, "")
	assert.Equal(t, int64(130_000-50_000-fee), tx.TxOut[1].Value)

	d, err := m.Util().Decode(utx.Bytes())
	require.NoError(t, err)
	assert.False(t, d.Signed)
	assert.Equal(t, testFrom, d.From)
	assert.Equal(t, testFrom, d.Outputs[1].Address)
}

func TestBuildTx_DustChangeGoesToFee(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	fee := uint64(10) * estimateSize(1, 1, "")
	st := &txcore.ChainState{UTXOs: []txcore.UTXO{{TxID: txidA, Amount: 50_000 + fee + 300}}}
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), st)

	tx, err := parseUnsigned(utx.Bytes())
	require.NoError(t, err)
	assert.Len(t, tx.TxOut, 1)
}

func TestBuildTx_Memo(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	req := request(testFrom, recipient(p), "0.0005")
	req.Memo = "invoice-42"
	utx := build(t, m, req, state())

	d, err := m.Util().Decode(utx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "invoice-42", d.Memo)
	require.NoError(t, m.Util().Validate(utx.Bytes()))
}

func TestBuildTx_Errors(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	intent, err := m.Intent().ResolveIntent(request(testFrom, recipient(p), "0.01"))
	require.NoError(t, err)

	_, err = m.Builder().BuildTx(intent, &txcore.ChainState{})
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonMissingState})

	_, err = m.Builder().BuildTx(intent, state())
	assert.ErrorIs(t, err, errno.ErrInsufficientFunds)

	_, err = m.Builder().BuildTx(intent, &txcore.ChainState{UTXOs: []txcore.UTXO{{TxID: "zz", Amount: 5_000_000}}})
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonMissingState})

	intent.Fee.Price.SetUint64(MaxFee)
	_, err = m.Builder().BuildTx(intent, &txcore.ChainState{UTXOs: []txcore.UTXO{{TxID: txidA, Amount: 2_000_000_000_000}}})
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonFeeTooHigh})
}

func TestBuildTx_Deterministic(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	a := build(t, m, request(testFrom, recipient(p), "0.0005"), state())
	b := build(t, m, request(testFrom, recipient(p), "0.0005"), state())
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestSignTx_RoundTrip(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())
	key := testKey(t)

	signed, err := m.Signer().SignTx(utx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, key.Outstanding())
	require.Len(t, signed.Signatures(), 2)

	decoded, err := m.Util().Decode(signed.Bytes())
	require.NoError(t, err)
	assert.True(t, decoded.Signed)
	assert.Equal(t, utx.Bytes(), decoded.Unsigned.Bytes())
	assert.Equal(t, testFrom, decoded.From)
	for i := range decoded.Signatures {
		require.NoError(t, m.Util().VerifyTx(decoded.Unsigned.Bytes(), &decoded.Signatures[i]))
	}

	tx := new(wire.MsgTx)
	require.NoError(t, tx.Deserialize(bytes.NewReader(signed.Bytes())))
	assert.Equal(t, tx.TxHash().String(), signed.HashHex())
	hash, err := m.Util().TxHash(signed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, signed.Hash(), hash)

	// 用脚本引擎执行每个输入
	prevScript := decodedPrevScript(t, utx)
	for i := range tx.TxIn {
		fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, 0)
		vm, err := txscript.NewEngine(prevScript, tx, i, txscript.StandardVerifyFlags, nil, nil, 0, fetcher)
		require.NoError(t, err)
		require.NoError(t, vm.Execute())
	}

	require.NoError(t, m.Util().Validate(signed.Bytes()))
}

func decodedPrevScript(t *testing.T, utx *txcore.UnsignedTransaction) []byte {
	t.Helper()
	tx, err := parseUnsigned(utx.Bytes())
	require.NoError(t, err)
	return tx.TxIn[0].SignatureScript
}

func TestSignTx_WrongKey(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())

	other, err := keys.FromMnemonic(testMnemonic, "", "m/44'/0'/0'/0/1")
	require.NoError(t, err)
	_, err = m.Signer().SignTx(utx, other)
	assert.ErrorIs(t, err, errno.ErrSigning)
	assert.Equal(t, 0, other.Outstanding())

	_, err = m.Signer().SignTx(txcore.NewUnsignedTransaction(chain.Bitcoin, []byte{1, 2, 3}), testKey(t))
	assert.ErrorIs(t, err, errno.ErrEncoding)
}

func TestSignMessage(t *testing.T) {
	m, _ := newModule(t, chain.Bitcoin)
	key := testKey(t)
	msg := []byte("hello chain-core")

	sm, err := m.MessageSigner().SignMessage(msg, key)
	require.NoError(t, err)
	assert.Equal(t, 0, key.Outstanding())

	raw, err := base64.StdEncoding.DecodeString(sm.Encoded)
	require.NoError(t, err)
	assert.Len(t, raw, 65)
	assert.GreaterOrEqual(t, raw[0], byte(31), "压缩公钥的 header 为 31..34")

	require.NoError(t, m.MessageSigner().VerifyMessage(msg, &sm.Signature))
	assert.ErrorIs(t, m.MessageSigner().VerifyMessage([]byte("other"), &sm.Signature), errno.ErrSigning)

	// 不同链的消息前缀不同
	kmd, _ := newModule(t, chain.Komodo)
	assert.Error(t, kmd.MessageSigner().VerifyMessage(msg, &sm.Signature))
}

func TestDomainSeparation(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	key := testKey(t)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())

	signed, err := m.Signer().SignTx(utx, key)
	require.NoError(t, err)
	txSig := signed.Signatures()[0]
	assert.Error(t, m.MessageSigner().VerifyMessage(utx.Bytes(), &txSig))

	sm, err := m.MessageSigner().SignMessage(utx.Bytes(), key)
	require.NoError(t, err)
	assert.Error(t, m.Util().VerifyTx(utx.Bytes(), &sm.Signature))
}

func TestUtil(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())

	again, err := m.Util().DecodeUnsigned(utx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, utx.Bytes(), again.Bytes())

	hash, err := m.Util().TxHash(utx.Bytes())
	require.NoError(t, err)
	first := sha256.Sum256(utx.Bytes())
	second := sha256.Sum256(first[:])
	assert.Equal(t, second[:], hash)

	for _, raw := range [][]byte{nil, {0x01}, append(utx.Bytes(), 0x00)} {
		_, err := m.Util().DecodeUnsigned(raw)
		assert.ErrorIs(t, err, errno.ErrEncoding)
	}

	small, err := New(chain.Bitcoin, config.ChainConfig{}, config.LimitsConfig{MaxTxBytes: 50})
	require.NoError(t, err)
	assert.ErrorIs(t, small.Util().Validate(utx.Bytes()), errno.ErrEncoding)
}

func TestValidate_Dust(t *testing.T) {
	m, p := newModule(t, chain.Bitcoin)
	utx := build(t, m, request(testFrom, recipient(p), "0.0005"), state())
	tx, err := parseUnsigned(utx.Bytes())
	require.NoError(t, err)
	tx.TxOut[0].Value = 100
	raw, err := serialize(tx)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Util().Validate(raw), errno.ErrEncoding)
}

func TestNetworks(t *testing.T) {
	m, err := New(chain.Bitcoin, config.ChainConfig{Network: "testnet"}, config.LimitsConfig{})
	require.NoError(t, err)
	p := m.Builder().(*builder).p
	addr := p.encodeAddress(bytes.Repeat([]byte{0}, 20))
	assert.True(t, addr[0] == 'm' || addr[0] == 'n')

	_, err = New(chain.Bitcoin, config.ChainConfig{Network: "regtest"}, config.LimitsConfig{})
	assert.Error(t, err)
	_, err = New(chain.Ethereum, config.ChainConfig{}, config.LimitsConfig{})
	assert.Error(t, err)
}

func TestAllFamilyMembersSign(t *testing.T) {
	for _, c := range Chains() {
		t.Run(c.String(), func(t *testing.T) {
			m, p := newModule(t, c)
			k, err := keys.OpenSecp256k1(testKey(t))
			require.NoError(t, err)
			from := p.addressFromPubKey(k.PubKey().SerializeCompressed())
			k.Close()

			utx := build(t, m, request(from, recipient(p), "0.0005"), state())
			key := testKey(t)
			signed, err := m.Signer().SignTx(utx, key)
			require.NoError(t, err)
			assert.Equal(t, 0, key.Outstanding())

			d, err := m.Util().Decode(signed.Bytes())
			require.NoError(t, err)
			assert.Equal(t, from, d.From)
			assert.Equal(t, utx.Bytes(), d.Unsigned.Bytes())
		})
	}
}
