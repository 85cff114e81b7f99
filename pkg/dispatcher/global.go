package dispatcher

import (
	"errors"
	"sync"
	"sync/atomic"

	"chain-core/pkg/config"
)

var ErrAlreadyInitialized = errors.New("dispatcher already initialized")

var (
	initMu sync.Mutex
	global atomic.Pointer[Dispatcher]
)

// Init 构建进程级默认 Dispatcher，成功后不可替换，再次调用返回 ErrAlreadyInitialized。
// 构建失败不会占用这次初始化，修正配置后可以重新调用。
func Init(cfg *config.Config, opts ...Option) error {
	initMu.Lock()
	defer initMu.Unlock()
	if global.Load() != nil {
		return ErrAlreadyInitialized
	}
	d, err := NewDefault(cfg, opts...)
	if err != nil {
		return err
	}
	global.Store(d)
	return nil
}

// Global 返回 Init 构建的实例，Init 之前为 nil
func Global() *Dispatcher {
	return global.Load()
}
