// Package dispatcher 将链标签解析为链模块，并按固定流程驱动模块:
// 意图解析 -> 构建未签名交易 -> 签名，离线消息签名走独立路径。
package dispatcher

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"chain-core/internal/chains/account"
	"chain-core/internal/chains/cosmos"
	"chain-core/internal/chains/evm"
	"chain-core/internal/chains/utxo"
	"chain-core/pkg/chain"
	"chain-core/pkg/config"
	"chain-core/pkg/errno"
	"chain-core/pkg/keys"
	"chain-core/pkg/logger"
	"chain-core/pkg/monitor"
	"chain-core/pkg/txcore"
)

var (
	ErrDuplicateModule   = errors.New("duplicate chain module")
	ErrUnsupportedModule = errors.New("module registered for an unsupported chain")
	ErrIncomplete        = errors.New("chain identities without a module")
)

// family 一组共享实现的链
type family struct {
	name   string
	chains func() []chain.Type
	build  func(chain.Type, config.ChainConfig, config.LimitsConfig) (txcore.Module, error)
}

var families = []family{
	{name: "evm", chains: evm.Chains, build: evm.New},
	{name: "utxo", chains: utxo.Chains, build: utxo.New},
	{name: "cosmos", chains: cosmos.Chains, build: cosmos.New},
	{name: "account", chains: account.Chains, build: account.New},
}

type options struct {
	modules []txcore.Module
	log     *zap.Logger
	metrics *monitor.DispatchMetrics
}

type Option func(*options)

// WithModules 注册链模块
func WithModules(modules ...txcore.Module) Option {
	return func(o *options) {
		o.modules = append(o.modules, modules...)
	}
}

// WithLogger 默认使用 logger.Log
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics 不设置时不记录指标
func WithMetrics(m *monitor.DispatchMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Dispatcher 链标识到链模块的映射。
// 模块表在构造时确定，之后只读，因此查询不需要加锁。
type Dispatcher struct {
	modules map[chain.Type]txcore.Module
	log     *zap.Logger
	metrics *monitor.DispatchMetrics
}

// New 使用给定模块构造 Dispatcher，重复注册或为 Unsupported 注册模块都会失败
func New(opts ...Option) (*Dispatcher, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Log
	}

	modules := make(map[chain.Type]txcore.Module, len(o.modules))
	for _, m := range o.modules {
		if m == nil {
			continue
		}
		c := m.Chain()
		if !c.IsSupported() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedModule, c)
		}
		if _, ok := modules[c]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, c)
		}
		modules[c] = m
	}

	d := &Dispatcher{modules: modules, log: o.log, metrics: o.metrics}
	d.log.Debug("dispatcher ready", zap.Int("modules", len(modules)))
	return d, nil
}

// NewDefault 为 chain.All() 中的每条链创建模块，任何链缺少模块都视为错误
func NewDefault(cfg *config.Config, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var modules []txcore.Module
	for _, f := range families {
		for _, c := range f.chains() {
			m, err := f.build(c, cfg.Chain(c), cfg.Limits)
			if err != nil {
				return nil, fmt.Errorf("%s: build module for %s: %w", f.name, c, err)
			}
			modules = append(modules, m)
		}
	}

	d, err := New(append([]Option{WithModules(modules...)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if missing := d.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}
	return d, nil
}

// ModuleFor 返回链模块，Unsupported 或未注册的链返回 UnsupportedChain 错误
func (d *Dispatcher) ModuleFor(t chain.Type) (txcore.Module, error) {
	var err error
	m, ok := d.modules[t]
	if !t.IsSupported() || !ok {
		err = errno.UnsupportedChain(t.String())
		d.log.Warn("chain module lookup rejected", zap.String("chain", t.String()))
	}
	d.metrics.ObserveDispatch(t.String(), err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ModuleForTag 解析外部标签后查找模块
func (d *Dispatcher) ModuleForTag(tag string) (txcore.Module, error) {
	return d.ModuleFor(chain.Resolve(tag))
}

// Missing 返回没有模块的链，按 chain.All() 顺序
func (d *Dispatcher) Missing() []chain.Type {
	var out []chain.Type
	for _, t := range chain.All() {
		if _, ok := d.modules[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// Chains 返回已注册的链
func (d *Dispatcher) Chains() []chain.Type {
	out := make([]chain.Type, 0, len(d.modules))
	for t := range d.modules {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Prepare 执行意图解析与构建，返回待签名交易
func (d *Dispatcher) Prepare(tag string, req *txcore.Request, state *txcore.ChainState) (*txcore.UnsignedTransaction, error) {
	m, err := d.ModuleForTag(tag)
	if err != nil {
		return nil, err
	}
	_, utx, err := d.prepare(m, req, state)
	return utx, err
}

// Transfer 依次执行意图解析、构建与签名
func (d *Dispatcher) Transfer(tag string, req *txcore.Request, state *txcore.ChainState, key *keys.Material) (*txcore.SignedTransaction, error) {
	m, err := d.ModuleForTag(tag)
	if err != nil {
		return nil, err
	}
	intent, utx, err := d.prepare(m, req, state)
	if err != nil {
		return nil, err
	}

	name := m.Chain().String()
	start := time.Now()
	signed, err := m.Signer().SignTx(utx, key)
	d.observe(name, monitor.StepSign, intent.ID(), start, err)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// SignMessage 使用链的消息签名域，与交易流程互不影响
func (d *Dispatcher) SignMessage(tag string, message []byte, key *keys.Material) (*txcore.SignedMessage, error) {
	m, err := d.ModuleForTag(tag)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	sm, err := m.MessageSigner().SignMessage(message, key)
	d.observe(m.Chain().String(), monitor.StepMessage, "", start, err)
	if err != nil {
		return nil, err
	}
	return sm, nil
}

func (d *Dispatcher) prepare(m txcore.Module, req *txcore.Request, state *txcore.ChainState) (*txcore.Intent, *txcore.UnsignedTransaction, error) {
	name := m.Chain().String()

	start := time.Now()
	intent, err := m.Intent().ResolveIntent(req)
	d.observe(name, monitor.StepIntent, intent.ID(), start, err)
	if err != nil {
		return nil, nil, err
	}

	start = time.Now()
	utx, err := m.Builder().BuildTx(intent, state)
	d.observe(name, monitor.StepBuild, intent.ID(), start, err)
	if err != nil {
		return nil, nil, err
	}
	return intent, utx, nil
}

func (d *Dispatcher) observe(name, step, intentID string, start time.Time, err error) {
	d.metrics.ObserveStep(name, step, start, err)

	fields := []zap.Field{
		zap.String("chain", name),
		zap.String("step", step),
		zap.Duration("elapsed", time.Since(start)),
	}
	if intentID != "" {
		fields = append(fields, zap.String("intent_id", intentID))
	}
	if err != nil {
		code, _ := errno.Decode(err)
		fields = append(fields, zap.Int("code", code), zap.Error(err))
		d.log.Debug("pipeline step failed", fields...)
		return
	}
	d.log.Debug("pipeline step done", fields...)
}
