package conversation

import (
	"errors"
	"sync"
)

var ErrViewNotFound = errors.New("view not found")

// Registry 管理打开的会话视图，每个视图各自持有会话记录和累积状态
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View
}

func NewRegistry() *Registry {
	return &Registry{
		views: make(map[string]*View),
	}
}

// Create 以生成的ID创建新视图
func (r *Registry) Create() *View {
	v := NewView("")

	r.mu.Lock()
	r.views[v.ID()] = v
	r.mu.Unlock()

	return v
}

func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

// Remove 关闭并移除视图
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()

	if !ok {
		return ErrViewNotFound
	}
	v.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// CloseAll 关闭全部视图，服务停止时调用
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
