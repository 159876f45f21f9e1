package mailfetch

import "sync"

// AttemptRegistry 取件进行中标记的注册表。
//
// 同一 key（账号ID+用途）至多允许一次取件在途，这是防止并发
// 重复轮询同一邮箱的互斥原语。注册表由构造方注入，生命周期
// 显式归属于编排器的持有者，而不是包级全局变量。
type AttemptRegistry interface {
	// TryAcquire 尝试登记一次取件，已在途时返回 false。
	TryAcquire(key string) bool
	// Release 清除在途标记。对未登记的 key 调用是无害的。
	Release(key string)
	// InFlight 查询 key 是否在途。
	InFlight(key string) bool
}

// MemoryRegistry 进程内注册表实现。
type MemoryRegistry struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewMemoryRegistry 创建进程内注册表。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{inFlight: make(map[string]struct{})}
}

// TryAcquire 原子地检查并登记取件标记。
func (r *MemoryRegistry) TryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inFlight[key]; exists {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

// Release 清除取件标记。
func (r *MemoryRegistry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

// InFlight 查询取件标记。
func (r *MemoryRegistry) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.inFlight[key]
	return exists
}

// LayeredRegistry 叠加两层注册表的实现。
//
// 多副本部署时本地层做进程内互斥，远端层（Redis SETNX）做
// 跨进程互斥；两层都登记成功才算取得。
type LayeredRegistry struct {
	local  AttemptRegistry
	remote AttemptRegistry
}

// NewLayeredRegistry 创建叠加注册表。
func NewLayeredRegistry(local, remote AttemptRegistry) *LayeredRegistry {
	return &LayeredRegistry{local: local, remote: remote}
}

// TryAcquire 先取本地标记再取远端标记，远端失败时回滚本地。
func (r *LayeredRegistry) TryAcquire(key string) bool {
	if !r.local.TryAcquire(key) {
		return false
	}
	if !r.remote.TryAcquire(key) {
		r.local.Release(key)
		return false
	}
	return true
}

// Release 清除两层标记。
func (r *LayeredRegistry) Release(key string) {
	r.remote.Release(key)
	r.local.Release(key)
}

// InFlight 任一层在途即视为在途。
func (r *LayeredRegistry) InFlight(key string) bool {
	return r.local.InFlight(key) || r.remote.InFlight(key)
}
