package dispatcher

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/crypto_util"
	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/monitor"
	"chain-core/pkg/txcore"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type mockIntent struct{ mock.Mock }

func (m *mockIntent) ResolveIntent(req *txcore.Request) (*txcore.Intent, error) {
	args := m.Called(req)
	intent, _ := args.Get(0).(*txcore.Intent)
	return intent, args.Error(1)
}

type mockBuilder struct{ mock.Mock }

func (m *mockBuilder) BuildTx(intent *txcore.Intent, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	args := m.Called(intent, state)
	utx, _ := args.Get(0).(*txcore.UnsignedTransaction)
	return utx, args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) SignTx(utx *txcore.UnsignedTransaction, key *keys.Material) (*txcore.SignedTransaction, error) {
	args := m.Called(utx, key)
	signed, _ := args.Get(0).(*txcore.SignedTransaction)
	return signed, args.Error(1)
}

type mockMessageSigner struct{ mock.Mock }

func (m *mockMessageSigner) SignMessage(message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	args := m.Called(message, key)
	sm, _ := args.Get(0).(*txcore.SignedMessage)
	return sm, args.Error(1)
}

func (m *mockMessageSigner) VerifyMessage(message []byte, sig *txcore.Signature) error {
	return m.Called(message, sig).Error(0)
}

type doubles struct {
	intent  *mockIntent
	builder *mockBuilder
	signer  *mockSigner
	message *mockMessageSigner
}

func newDouble(c chain.Type) (txcore.Module, *doubles) {
	d := &doubles{intent: &mockIntent{}, builder: &mockBuilder{}, signer: &mockSigner{}, message: &mockMessageSigner{}}
	return txcore.Compose(c, d.intent, d.builder, d.signer, d.message, nil), d
}

func newObserved(t *testing.T, opts ...Option) (*Dispatcher, *observer.ObservedLogs, *monitor.DispatchMetrics) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := monitor.NewDispatchMetrics(prometheus.NewRegistry())
	d, err := New(append(opts, WithLogger(zap.New(core)), WithMetrics(metrics))...)
	require.NoError(t, err)
	return d, logs, metrics
}

func TestNewDefault_CoversAllChains(t *testing.T) {
	d, err := NewDefault(config.Default(), WithMetrics(monitor.NewDispatchMetrics(prometheus.NewRegistry())))
	require.NoError(t, err)
	assert.Empty(t, d.Missing())
	assert.Equal(t, chain.All(), d.Chains())

	for _, c := range chain.All() {
		m, err := d.ModuleFor(c)
		require.NoError(t, err, c)
		assert.Equal(t, c, m.Chain())
		assert.NotNil(t, m.Intent())
		assert.NotNil(t, m.Builder())
		assert.NotNil(t, m.Signer())
		assert.NotNil(t, m.MessageSigner())
		assert.NotNil(t, m.Util())
	}
}

func TestNewDefault_NilConfig(t *testing.T) {
	d, err := NewDefault(nil)
	require.NoError(t, err)
	assert.Empty(t, d.Missing())
}

func TestModuleForTag_Scenarios(t *testing.T) {
	sui, _ := newDouble(chain.Sui)
	d, logs, metrics := newObserved(t, WithModules(sui))

	m, err := d.ModuleForTag("SUI")
	require.NoError(t, err)
	assert.Equal(t, chain.Sui, m.Chain())

	_, err = d.ModuleForTag("NOTACHAIN")
	require.ErrorIs(t, err, errno.ErrUnsupportedChain)
	assert.Equal(t, errno.KindUnsupportedChain, errno.KindOf(err))

	_, err = d.ModuleFor(chain.Unsupported)
	assert.ErrorIs(t, err, errno.ErrUnsupportedChain)

	// 受支持但未注册
	_, err = d.ModuleFor(chain.Bitcoin)
	assert.ErrorIs(t, err, errno.ErrUnsupportedChain)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("Sui", monitor.ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("Unsupported", monitor.ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues("Bitcoin", monitor.ResultError)))
	assert.Equal(t, 3, logs.FilterMessage("chain module lookup rejected").Len())
}

func TestNew_Rejects(t *testing.T) {
	a, _ := newDouble(chain.Sui)
	b, _ := newDouble(chain.Sui)
	_, err := New(WithModules(a, b))
	assert.ErrorIs(t, err, ErrDuplicateModule)

	u, _ := newDouble(chain.Unsupported)
	_, err = New(WithModules(u))
	assert.ErrorIs(t, err, ErrUnsupportedModule)

	// 手工构造的值不在链列表中
	x, _ := newDouble(chain.Type("Foobar"))
	_, err = New(WithModules(x))
	assert.ErrorIs(t, err, ErrUnsupportedModule)

	// NewDefault 之外再注册同一条链
	_, err = NewDefault(nil, WithModules(a))
	assert.ErrorIs(t, err, ErrDuplicateModule)
}

func TestMissing(t *testing.T) {
	sui, _ := newDouble(chain.Sui)
	d, err := New(WithModules(sui))
	require.NoError(t, err)
	missing := d.Missing()
	assert.Len(t, missing, len(chain.All())-1)
	assert.NotContains(t, missing, chain.Sui)
	assert.Contains(t, missing, chain.Bitcoin)
}

func TestTransfer_Pipeline(t *testing.T) {
	mod, mocks := newDouble(chain.Sui)
	d, logs, metrics := newObserved(t, WithModules(mod))

	req := &txcore.Request{From: "a", Recipients: []txcore.Recipient{{Address: "b", Amount: "1"}}}
	state := &txcore.ChainState{Sequence: 1}
	key := keys.NewMaterial(keys.SchemeEd25519, bytes.Repeat([]byte{1}, 32))
	intent := &txcore.Intent{Chain: chain.Sui, Action: txcore.ActionTransfer, From: "a"}
	utx := txcore.NewUnsignedTransaction(chain.Sui, []byte{1, 2, 3})
	signed := txcore.NewSignedTransaction(chain.Sui, []byte{4}, []byte{5}, nil)

	mocks.intent.On("ResolveIntent", req).Return(intent, nil).Once()
	mocks.builder.On("BuildTx", intent, state).Return(utx, nil).Once()
	mocks.signer.On("SignTx", utx, key).Return(signed, nil).Once()

	got, err := d.Transfer("sui", req, state, key)
	require.NoError(t, err)
	assert.Same(t, signed, got)
	mocks.intent.AssertExpectations(t)
	mocks.builder.AssertExpectations(t)
	mocks.signer.AssertExpectations(t)

	for _, step := range []string{monitor.StepIntent, monitor.StepBuild, monitor.StepSign} {
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepTotal.WithLabelValues("Sui", step, monitor.ResultOK)), step)
	}

	entries := logs.FilterMessage("pipeline step done").All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, intent.ID(), e.ContextMap()["intent_id"])
		assert.Equal(t, "Sui", e.ContextMap()["chain"])
	}
}

func TestTransfer_StopsAtFirstError(t *testing.T) {
	mod, mocks := newDouble(chain.Sui)
	d, logs, metrics := newObserved(t, WithModules(mod))

	bad := errno.InvalidIntent("Sui", "from", "malformed address")
	mocks.intent.On("ResolveIntent", mock.Anything).Return(nil, bad).Once()

	key := keys.NewMaterial(keys.SchemeEd25519, bytes.Repeat([]byte{1}, 32))
	_, err := d.Transfer("Sui", &txcore.Request{}, &txcore.ChainState{}, key)
	require.ErrorIs(t, err, errno.ErrInvalidIntent)

	mocks.builder.AssertNotCalled(t, "BuildTx", mock.Anything, mock.Anything)
	mocks.signer.AssertNotCalled(t, "SignTx", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepTotal.WithLabelValues("Sui", monitor.StepIntent, monitor.ResultError)))

	failed := logs.FilterMessage("pipeline step failed").All()
	require.Len(t, failed, 1)
	assert.EqualValues(t, errno.ErrInvalidIntent.Code, failed[0].ContextMap()["code"])
}

func TestTransfer_BuildError(t *testing.T) {
	mod, mocks := newDouble(chain.Sui)
	d, _, _ := newObserved(t, WithModules(mod))

	intent := &txcore.Intent{Chain: chain.Sui}
	mocks.intent.On("ResolveIntent", mock.Anything).Return(intent, nil)
	mocks.builder.On("BuildTx", intent, mock.Anything).Return(nil, errno.Build("Sui", errno.ReasonMissingState, "no state"))

	_, err := d.Transfer("Sui", &txcore.Request{}, nil, nil)
	assert.ErrorIs(t, err, &errno.Error{Kind: errno.KindBuild, Reason: errno.ReasonMissingState})
	mocks.signer.AssertNotCalled(t, "SignTx", mock.Anything, mock.Anything)
}

func TestSignMessage_IndependentPath(t *testing.T) {
	mod, mocks := newDouble(chain.Sui)
	d, _, metrics := newObserved(t, WithModules(mod))

	msg := []byte("hello")
	sm := &txcore.SignedMessage{Chain: chain.Sui, Message: msg}
	mocks.message.On("SignMessage", msg, mock.Anything).Return(sm, nil).Once()

	got, err := d.SignMessage("sui", msg, nil)
	require.NoError(t, err)
	assert.Same(t, sm, got)
	mocks.intent.AssertNotCalled(t, "ResolveIntent", mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepTotal.WithLabelValues("Sui", monitor.StepMessage, monitor.ResultOK)))

	_, err = d.SignMessage("NOTACHAIN", msg, nil)
	assert.ErrorIs(t, err, errno.ErrUnsupportedChain)
}

func TestTransfer_EndToEnd(t *testing.T) {
	d, err := NewDefault(nil)
	require.NoError(t, err)

	key, err := keys.Ed25519FromMnemonic(testMnemonic, "", "m/44'/784'/0'/0'/0'")
	require.NoError(t, err)

	// 先签一条消息拿到公钥，再推导 Sui 地址
	sm, err := d.SignMessage("sui", []byte("whoami"), key)
	require.NoError(t, err)
	from := "0x" + hex.EncodeToString(crypto_util.Blake2b256([]byte{0x00}, sm.Signature.PublicKey))

	m, err := d.ModuleForTag("sui")
	require.NoError(t, err)
	require.NoError(t, m.MessageSigner().VerifyMessage([]byte("whoami"), &sm.Signature))

	req := &txcore.Request{
		From:       from,
		Recipients: []txcore.Recipient{{Address: "0x" + hex.EncodeToString(bytes.Repeat([]byte{0x22}, 32)), Amount: "0.25"}},
	}
	state := &txcore.ChainState{Sequence: 7}

	utx, err := d.Prepare("sui", req, state)
	require.NoError(t, err)
	signed, err := d.Transfer("sui", req, state, key)
	require.NoError(t, err)
	assert.Equal(t, 0, key.Outstanding())

	decoded, err := m.Util().Decode(signed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, utx.Bytes(), decoded.Unsigned.Bytes())
	assert.Equal(t, from, decoded.From)
	assert.Equal(t, "250000000", decoded.Outputs[0].Amount.String())
	require.NoError(t, m.Util().VerifyTx(utx.Bytes(), &decoded.Signatures[0]))

	// 错误的密钥也必须清零
	wrong := keys.NewMaterial(keys.SchemeSecp256k1, bytes.Repeat([]byte{1}, 32))
	_, err = d.Transfer("sui", req, state, wrong)
	assert.ErrorIs(t, err, errno.ErrSigning)
	assert.Equal(t, 0, wrong.Outstanding())
}

func TestInit_Once(t *testing.T) {
	assert.Nil(t, Global())

	// 失败的 Init 不占用初始化机会
	sui, _ := newDouble(chain.Sui)
	err := Init(nil, WithModules(sui))
	assert.ErrorIs(t, err, ErrDuplicateModule)
	assert.Nil(t, Global())

	bad := &config.Config{Chains: map[string]config.ChainConfig{"notachain": {}}}
	assert.ErrorIs(t, Init(bad), config.ErrUnknownChain)
	assert.Nil(t, Global())

	require.NoError(t, Init(config.Default()))
	d := Global()
	require.NotNil(t, d)
	assert.Empty(t, d.Missing())

	err = Init(config.Default())
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))
	assert.Same(t, d, Global())
}
