package evm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
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
	testFrom     = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testTo       = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func newModule(t *testing.T, c chain.Type) txcore.Module {
	t.Helper()
	m, err := New(c, config.ChainConfig{}, config.LimitsConfig{})
	require.NoError(t, err)
	return m
}

func testKey(t *testing.T) *keys.Material {
	t.Helper()
	m, err := keys.FromMnemonic(testMnemonic, "", "m/44'/60'/0'/0/0")
	require.NoError(t, err)
	return m
}

func transferRequest() *txcore.Request {
	return &txcore.Request{
		Action:     txcore.ActionTransfer,
		From:       testFrom,
		Recipients: []txcore.Recipient{{Address: testTo, Amount: "0.5"}},
		Fee:        txcore.FeePreference{Price: "20000000000"},
	}
}

func build(t *testing.T, m txcore.Module, req *txcore.Request, nonce uint64) *txcore.UnsignedTransaction {
	t.Helper()
	intent, err := m.Intent().ResolveIntent(req)
	require.NoError(t, err)
	utx, err := m.Builder().BuildTx(intent, &txcore.ChainState{Sequence: nonce})
	require.NoError(t, err)
	return utx
}

func TestResolveIntent(t *testing.T) {
	m := newModule(t, chain.Ethereum)

	intent, err := m.Intent().ResolveIntent(transferRequest())
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", intent.Outputs[0].Amount.String())
	assert.Equal(t, uint64(21000), intent.Fee.Limit)

	tests := []struct {
		name  string
		mut   func(r *txcore.Request)
		field string
	}{
		{"bad checksum", func(r *txcore.Request) { r.Recipients[0].Address = "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" }, "recipients[0].address"},
		{"no prefix", func(r *txcore.Request) { r.From = "9858effd232b4033e47d90003d41ec34ecaeda94" }, "from"},
		{"memo", func(r *txcore.Request) { r.Memo = "hello" }, "memo"},
		{"two recipients", func(r *txcore.Request) { r.Recipients = append(r.Recipients, r.Recipients[0]) }, "recipients"},
		{"no gas price", func(r *txcore.Request) { r.Fee.Price = "" }, "fee.price"},
		{"tip above cap", func(r *txcore.Request) { r.Fee.Tip = "30000000000" }, "fee.tip"},
		{"calldata on transfer", func(r *txcore.Request) { r.Payload = []byte{1} }, "payload"},
		{"call without data", func(r *txcore.Request) { r.Action = txcore.ActionContractCall }, "payload"},
		{"stake", func(r *txcore.Request) { r.Action = txcore.ActionStake }, "action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transferRequest()
			tt.mut(req)
			_, err := m.Intent().ResolveIntent(req)
			require.ErrorIs(t, err, errno.ErrInvalidIntent)
			assert.Contains(t, err.Error(), "field="+tt.field)
		})
	}
}

func TestResolveIntent_ContractCallZeroValue(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	req := transferRequest()
	req.Action = txcore.ActionContractCall
	req.Recipients[0].Amount = "0"
	req.Payload = []byte{0xa9, 0x05, 0x9c, 0xbb}
	req.Fee.Limit = 60000

	intent, err := m.Intent().ResolveIntent(req)
	require.NoError(t, err)
	assert.Zero(t, intent.Outputs[0].Amount.Sign())
}

func TestBuildTx_PreimageMatchesGethSigner(t *testing.T) {
	m := newModule(t, chain.Ethereum)

	legacy := build(t, m, transferRequest(), 7)
	req := transferRequest()
	req.Fee.Tip = "1000000000"
	dynamic := build(t, m, req, 7)

	assert.Equal(t, byte(types.DynamicFeeTxType), dynamic.Bytes()[0])

	for _, utx := range []*txcore.UnsignedTransaction{legacy, dynamic} {
		f, err := parsePreimage(utx.Bytes())
		require.NoError(t, err)
		want := f.signer().Hash(f.toTx())
		assert.Equal(t, want.Bytes(), crypto.Keccak256(utx.Bytes()))
		assert.Equal(t, uint64(7), f.Nonce)
		assert.Equal(t, int64(1), f.ChainID.Int64())
	}
}

func TestBuildTx_Deterministic(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	a := build(t, m, transferRequest(), 3)
	b := build(t, m, transferRequest(), 3)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestBuildTx_Errors(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	intent, err := m.Intent().ResolveIntent(transferRequest())
	require.NoError(t, err)

	_, err = m.Builder().BuildTx(intent, nil)
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonMissingState})

	_, err = m.Builder().BuildTx(intent, &txcore.ChainState{ChainID: "5"})
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonChainIDMismatch})

	intent.Fee.Limit = MaxGas + 1
	_, err = m.Builder().BuildTx(intent, &txcore.ChainState{})
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonFeeTooHigh})
}

func TestSignTx_RoundTrip(t *testing.T) {
	for _, tip := range []string{"", "1000000000"} {
		t.Run("tip="+tip, func(t *testing.T) {
			m := newModule(t, chain.Ethereum)
			req := transferRequest()
			req.Fee.Tip = tip
			utx := build(t, m, req, 9)
			key := testKey(t)

			signed, err := m.Signer().SignTx(utx, key)
			require.NoError(t, err)
			assert.Equal(t, 0, key.Outstanding())

			decoded, err := m.Util().Decode(signed.Bytes())
			require.NoError(t, err)
			assert.True(t, decoded.Signed)
			assert.Equal(t, testFrom, decoded.From)
			assert.Equal(t, utx.Bytes(), decoded.Unsigned.Bytes())
			assert.Equal(t, testTo, decoded.Outputs[0].Address)
			assert.Equal(t, uint64(9), decoded.Sequence)

			require.Len(t, decoded.Signatures, 1)
			require.NoError(t, m.Util().VerifyTx(decoded.Unsigned.Bytes(), &decoded.Signatures[0]))
			require.NoError(t, m.Util().VerifyTx(utx.Bytes(), &signed.Signatures()[0]))

			hash, err := m.Util().TxHash(signed.Bytes())
			require.NoError(t, err)
			assert.Equal(t, signed.Hash(), hash)

			// geth 能独立解析并恢复发送方
			tx := new(types.Transaction)
			require.NoError(t, tx.UnmarshalBinary(signed.Bytes()))
			sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
			require.NoError(t, err)
			assert.Equal(t, testFrom, sender.Hex())

			require.NoError(t, m.Util().Validate(signed.Bytes()))
		})
	}
}

func TestSignTx_KeyErrors(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	utx := build(t, m, transferRequest(), 0)

	ed := keys.NewMaterial(keys.SchemeEd25519, bytes.Repeat([]byte{1}, 32))
	_, err := m.Signer().SignTx(utx, ed)
	assert.ErrorIs(t, err, errno.ErrSigning)
	assert.Equal(t, 0, ed.Outstanding())

	bad := keys.NewMaterial(keys.SchemeSecp256k1, make([]byte, 32))
	_, err = m.Signer().SignTx(utx, bad)
	assert.ErrorIs(t, err, errno.ErrSigning)
	assert.Equal(t, 0, bad.Outstanding())

	_, err = m.Signer().SignTx(txcore.NewUnsignedTransaction(chain.Ethereum, []byte{0x01, 0x02}), testKey(t))
	assert.ErrorIs(t, err, errno.ErrEncoding)
}

func TestSignMessage_EIP191(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	key := testKey(t)
	msg := []byte("hello chain-core")

	sm, err := m.MessageSigner().SignMessage(msg, key)
	require.NoError(t, err)
	assert.Equal(t, 0, key.Outstanding())
	assert.Len(t, sm.Encoded, 2+130)
	require.NoError(t, m.MessageSigner().VerifyMessage(msg, &sm.Signature))

	pub, err := crypto.SigToPub(crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n16"), msg), sm.Signature.Bytes)
	require.NoError(t, err)
	assert.Equal(t, testFrom, crypto.PubkeyToAddress(*pub).Hex())

	assert.ErrorIs(t, m.MessageSigner().VerifyMessage([]byte("tampered"), &sm.Signature), errno.ErrSigning)
}

func TestDomainSeparation(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	key := testKey(t)
	utx := build(t, m, transferRequest(), 1)

	signed, err := m.Signer().SignTx(utx, key)
	require.NoError(t, err)
	txSig := signed.Signatures()[0]
	assert.Error(t, m.MessageSigner().VerifyMessage(utx.Bytes(), &txSig))

	sm, err := m.MessageSigner().SignMessage(utx.Bytes(), key)
	require.NoError(t, err)
	assert.Error(t, m.Util().VerifyTx(utx.Bytes(), &sm.Signature))
}

func TestRonin(t *testing.T) {
	m := newModule(t, chain.Ronin)
	req := transferRequest()
	req.From = "ronin:9858effd232b4033e47d90003d41ec34ecaeda94"
	req.Recipients[0].Address = "ronin:5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

	intent, err := m.Intent().ResolveIntent(req)
	require.NoError(t, err)
	assert.Equal(t, "ronin:5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", intent.Outputs[0].Address)

	utx, err := m.Builder().BuildTx(intent, &txcore.ChainState{ChainID: "2020"})
	require.NoError(t, err)
	signed, err := m.Signer().SignTx(utx, testKey(t))
	require.NoError(t, err)

	decoded, err := m.Util().Decode(signed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "ronin:9858effd232b4033e47d90003d41ec34ecaeda94", decoded.From)
	assert.Equal(t, "2020", decoded.Fields["chain_id"])

	// Ronin 交易不能在以太坊模块上通过校验
	eth := newModule(t, chain.Ethereum)
	assert.ErrorIs(t, eth.Util().Validate(signed.Bytes()), &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonChainIDMismatch})
	_, err = eth.Signer().SignTx(utx, testKey(t))
	assert.ErrorIs(t, err, errno.ErrEncoding)
}

func TestConfigChainID(t *testing.T) {
	m, err := New(chain.Ethereum, config.ChainConfig{ChainID: "11155111"}, config.LimitsConfig{MaxTxBytes: 64})
	require.NoError(t, err)
	utx := build(t, m, transferRequest(), 0)
	f, err := parsePreimage(utx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "11155111", f.ChainID.String())

	// 未签名原像 > 64 字节
	assert.ErrorIs(t, m.Util().Validate(append(utx.Bytes(), make([]byte, 64)...)), errno.ErrEncoding)

	_, err = New(chain.Ethereum, config.ChainConfig{ChainID: "abc"}, config.LimitsConfig{})
	assert.Error(t, err)
	_, err = New(chain.Sui, config.ChainConfig{}, config.LimitsConfig{})
	assert.Error(t, err)
}

func TestUtil_Unsigned(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	utx := build(t, m, transferRequest(), 4)

	again, err := m.Util().DecodeUnsigned(utx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, utx.Bytes(), again.Bytes())

	d, err := m.Util().Decode(utx.Bytes())
	require.NoError(t, err)
	assert.False(t, d.Signed)
	assert.Equal(t, "legacy", d.Fields["type"])
	assert.Equal(t, "420000000000000", d.Fee.String())

	hash, err := m.Util().TxHash(utx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256(utx.Bytes()), hash)

	require.NoError(t, m.Util().Validate(utx.Bytes()))

	for _, raw := range [][]byte{nil, {0x01, 0xc0}, {0xc1, 0x80}, append([]byte{0x02}, 0xc0)} {
		_, err := m.Util().DecodeUnsigned(raw)
		assert.ErrorIs(t, err, errno.ErrEncoding)
	}
}

func TestValidate_TipAboveCap(t *testing.T) {
	m := newModule(t, chain.Ethereum)
	to := crypto.PubkeyToAddress(crypto.ToECDSAUnsafe(bytes.Repeat([]byte{1}, 32)).PublicKey)
	f := &txFields{
		Dynamic:  true,
		ChainID:  big.NewInt(1),
		GasPrice: big.NewInt(1),
		Tip:      big.NewInt(2),
		Gas:      21000,
		To:       &to,
		Value:    big.NewInt(1),
	}
	raw, err := f.preimage()
	require.NoError(t, err)
	assert.ErrorIs(t, m.Util().Validate(raw), errno.ErrEncoding)

	f.Tip = big.NewInt(1)
	f.Gas = 20000
	raw, err = f.preimage()
	require.NoError(t, err)
	assert.ErrorIs(t, m.Util().Validate(raw), errno.ErrEncoding)
}
