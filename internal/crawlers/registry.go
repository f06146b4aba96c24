package crawlers

import "sync"

// Registry 已发现URL集合
// 只增不减; 按字符串完全匹配, 不做任何规范化
type Registry struct {
	urls map[string]struct{}
	mu   sync.RWMutex
}

// NewRegistry 创建空集合
func NewRegistry() *Registry {
	return &Registry{
		urls: make(map[string]struct{}),
	}
}

// TryAdd 原子地检查并插入, 首次插入返回true
func (r *Registry) TryAdd(u string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[u]; ok {
		return false
	}
	r.urls[u] = struct{}{}
	return true
}

// Contains 是否已发现
func (r *Registry) Contains(u string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.urls[u]
	return ok
}

// Len 已发现URL数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}
