package reactor

import "sync"

// lockRef 可替换的全局反应锁
//
// 每次替换都安装新的 lockRef，分发方以指针比较确认所持锁仍是当前锁。
type lockRef struct {
	l sync.Locker
}

// acquire 获取当前分发锁
//
// 拿到锁后若发现已被替换，释放并重试，保证持有的永远是当前锁。
func (r *Reactor) acquire() *lockRef {
	for {
		ref := r.lock.Load()
		ref.l.Lock()
		if r.lock.Load() == ref {
			return ref
		}
		ref.l.Unlock()
	}
}
