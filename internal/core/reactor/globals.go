package reactor

import (
	"fmt"
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// GlobalFunc 全局反应函数
//
// 全局反应只在分发进程内执行，由调用方传入的函数表按下标定位。
// 函数在分发锁下执行，不得对同一 Reactor 调用 AttachGlobal/DetachGlobal/SetDispatchLock，
// 也不得再次带全局表在通道 0 上分发。
type GlobalFunc func(msg []byte, ctx any) types.ReactionResult

// GlobalReaction 全局反应登记
type GlobalReaction struct {
	index    int
	ctx      any
	attached atomic.Bool
}

// Index 返回函数表下标
func (g *GlobalReaction) Index() int {
	return g.index
}

// Attached 是否仍在登记中
func (g *GlobalReaction) Attached() bool {
	return g.attached.Load()
}

// AttachGlobal 登记全局反应
//
// 全局反应按登记顺序执行。
func (r *Reactor) AttachGlobal(index int, ctx any) (*GlobalReaction, error) {
	if index < 0 {
		return nil, fmt.Errorf("attach global %d to %s: %w", index, r.id, types.ErrInvalidArgument)
	}
	if r.destroyed.Load() {
		return nil, fmt.Errorf("attach global to %s: %w", r.id, types.ErrDestroyed)
	}

	g := &GlobalReaction{index: index, ctx: ctx}
	g.attached.Store(true)

	ref := r.acquire()
	r.globals = append(r.globals, g)
	r.nglobals.Store(int32(len(r.globals)))
	ref.l.Unlock()

	return g, nil
}

// DetachGlobal 撤销全局反应，重复调用无副作用
func (r *Reactor) DetachGlobal(g *GlobalReaction) error {
	if g == nil {
		return fmt.Errorf("detach global from %s: %w", r.id, types.ErrInvalidArgument)
	}
	if !g.attached.CompareAndSwap(true, false) {
		return nil
	}

	ref := r.acquire()
	defer ref.l.Unlock()

	for i, cur := range r.globals {
		if cur == g {
			r.globals = append(r.globals[:i:i], r.globals[i+1:]...)
			break
		}
	}
	r.nglobals.Store(int32(len(r.globals)))
	return nil
}

// GlobalCount 返回已登记的全局反应数
func (r *Reactor) GlobalCount() int {
	return int(r.nglobals.Load())
}

// processGlobals 在分发锁下执行全局反应
//
// 下标不小于边界的登记记录告警并跳过，保持登记；返回 RSRemove 的立即移除。
func (r *Reactor) processGlobals(msg []byte, table []GlobalFunc) {
	bound := len(table)
	for i, fn := range table {
		if fn == nil {
			bound = i
			break
		}
	}

	ref := r.acquire()
	defer ref.l.Unlock()

	kept := make([]*GlobalReaction, 0, len(r.globals))
	for _, g := range r.globals {
		if g.index >= bound {
			hotLog.Warn("全局反应下标越界，跳过", "reactor", r.id, "index", g.index, "bound", bound)
			kept = append(kept, g)
			continue
		}

		if table[g.index](msg, g.ctx) == types.RSRemove {
			g.attached.Store(false)
			continue
		}
		kept = append(kept, g)
	}

	r.globals = kept
	r.nglobals.Store(int32(len(kept)))
}
