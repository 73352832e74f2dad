package socket

import (
	"sort"
	"sync"

	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// registryKey 监听登记表在共享段扩展槽中的键
const registryKey = "transport/socket.registry"

// Registry World 级的远端监听登记表
//
// 每个 Reactor 记录 (进程, 通道) -> 引用计数，计数归零时删除记录。
type Registry struct {
	shared   *world.Shared
	hookOnce sync.Once

	mu        sync.Mutex
	listeners map[types.ReactorID]map[listenerKey]int
}

type listenerKey struct {
	process types.FusionID
	channel types.Channel
}

// RegistryOf 返回 World 的监听登记表，不存在时创建
func RegistryOf(shared *world.Shared) *Registry {
	r := shared.Extension(registryKey, func() any {
		return &Registry{
			shared:    shared,
			listeners: make(map[types.ReactorID]map[listenerKey]int),
		}
	}).(*Registry)

	r.hookOnce.Do(func() {
		shared.OnLeave(r.RemoveProcess)
	})
	return r
}

// Add 登记 (进程, 通道) 监听，计数加一
func (r *Registry) Add(reactor types.ReactorID, ch types.Channel, id types.FusionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shared.ReactorRetired(reactor) {
		return false
	}
	m, ok := r.listeners[reactor]
	if !ok {
		m = make(map[listenerKey]int)
		r.listeners[reactor] = m
	}
	m[listenerKey{process: id, channel: ch}]++
	return true
}

// Remove 计数减一，归零时删除记录
func (r *Registry) Remove(reactor types.ReactorID, ch types.Channel, id types.FusionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.listeners[reactor]
	key := listenerKey{process: id, channel: ch}
	if m[key] == 0 {
		return
	}
	m[key]--
	if m[key] == 0 {
		delete(m, key)
	}
	if len(m) == 0 {
		delete(r.listeners, reactor)
	}
}

// Prune 删除进程在 Reactor 上的全部记录（进程已不可达）
func (r *Registry) Prune(reactor types.ReactorID, id types.FusionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.listeners[reactor]
	for key := range m {
		if key.process == id {
			delete(m, key)
		}
	}
	if len(m) == 0 {
		delete(r.listeners, reactor)
	}
}

// RemoveProcess 删除进程在所有 Reactor 上的记录
func (r *Registry) RemoveProcess(id types.FusionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for reactor, m := range r.listeners {
		for key := range m {
			if key.process == id {
				delete(m, key)
			}
		}
		if len(m) == 0 {
			delete(r.listeners, reactor)
		}
	}
}

// Listeners 返回订阅了 (reactor, ch) 的进程，Reactor 已销毁时 ok 为 false
func (r *Registry) Listeners(reactor types.ReactorID, ch types.Channel) (ids []types.FusionID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shared.ReactorRetired(reactor) {
		return nil, false
	}
	for key := range r.listeners[reactor] {
		if key.channel == ch {
			ids = append(ids, key.process)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, true
}

// Refs 返回 (进程, 通道) 的计数
func (r *Registry) Refs(reactor types.ReactorID, ch types.Channel, id types.FusionID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners[reactor][listenerKey{process: id, channel: ch}]
}

// Destroy 删除 Reactor 的全部记录
func (r *Registry) Destroy(reactor types.ReactorID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, reactor)
	r.shared.RetireReactor(reactor)
}

// tracked 返回仍有监听记录的 Reactor 数
func (r *Registry) tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}
