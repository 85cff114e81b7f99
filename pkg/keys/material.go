package keys

import (
	"errors"
	"sync"
)

// Scheme 定义签名曲线
type Scheme string

const (
	SchemeSecp256k1 Scheme = "secp256k1" // 比特币/以太坊/Cosmos/Ripple
	SchemeEd25519   Scheme = "ed25519"   // Solana/Sui/Aptos/Polkadot 等
)

var (
	ErrNoKey        = errors.New("未提供密钥")
	ErrWrongScheme  = errors.New("密钥曲线与链不匹配")
	ErrMalformedKey = errors.New("密钥格式错误")
	ErrKeyDestroyed = errors.New("密钥已销毁")
)

// Material 是调用方持有的私钥材料。
// 核心代码从不持久化它：每次签名调用通过 Open* 租用一份私有副本，
// 并在调用的所有退出路径上将副本清零。
type Material struct {
	scheme Scheme

	mu        sync.Mutex
	secret    []byte
	destroyed bool
	// watched 记录尚未清零的租出缓冲区，清零后在下一次加锁时移除
	watched [][]byte
	leases  int
}

// NewMaterial 拷贝 secret 构造密钥材料，调用方可以随后清零自己的缓冲区。
func NewMaterial(scheme Scheme, secret []byte) *Material {
	buf := make([]byte, len(secret))
	copy(buf, secret)
	return &Material{scheme: scheme, secret: buf}
}

// Scheme 返回密钥曲线
func (m *Material) Scheme() Scheme {
	return m.scheme
}

// Destroy 清零内部副本，之后任何 Open 都会失败
func (m *Material) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	zero(m.secret)
	m.secret = nil
	m.destroyed = true
}

// Leases 返回累计租用 (Open) 的次数
func (m *Material) Leases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leases
}

// Outstanding 返回仍含有非零字节的租出缓冲区数量。
// 每次签名调用返回后 (无论成功或失败) 它都应该为 0。
func (m *Material) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return len(m.watched)
}

// prune 移除已清零的缓冲区，监控列表只保留仍在使用或泄漏的副本。调用方持有锁。
func (m *Material) prune() {
	live := m.watched[:0]
	for _, b := range m.watched {
		if !isZero(b) {
			live = append(live, b)
		}
	}
	for i := len(live); i < len(m.watched); i++ {
		m.watched[i] = nil
	}
	m.watched = live
}

// borrow 返回 secret 的一份私有拷贝，并加入监控列表
func (m *Material) borrow(scheme Scheme) ([]byte, error) {
	if m == nil {
		return nil, ErrNoKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil, ErrKeyDestroyed
	}
	if m.scheme != scheme {
		return nil, ErrWrongScheme
	}
	buf := make([]byte, len(m.secret))
	copy(buf, m.secret)
	m.prune()
	m.watched = append(m.watched, buf)
	m.leases++
	return buf, nil
}

// watch 把派生出的敏感缓冲区 (例如 ed25519 展开私钥) 也纳入监控
func (m *Material) watch(buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	m.watched = append(m.watched, buf)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
