package shutdown

import (
	"context"
	"fmt"
	"sync"
)

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 关闭阶段
type Phase int

const (
	// PhaseRunning 正常运行
	PhaseRunning Phase = iota

	// PhaseDraining 排空：对象池拒绝新建对象
	PhaseDraining

	// PhaseWaiting 等待所有对象池归零
	PhaseWaiting

	// PhaseDestroying 销毁对象池，残留对象按僵尸析构
	PhaseDestroying

	// PhaseKilling 终止其余进程
	PhaseKilling

	// PhaseDone 关闭完成
	PhaseDone
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseWaiting:
		return "waiting"
	case PhaseDestroying:
		return "destroying"
	case PhaseKilling:
		return "killing"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// ============================================================================
//                              阶段追踪
// ============================================================================

// phases 阶段追踪与 gate
type phases struct {
	mu       sync.RWMutex
	phase    Phase
	signals  map[Phase]chan struct{}
	onChange []func(old, new Phase)
}

func newPhases() *phases {
	p := &phases{
		phase:   PhaseRunning,
		signals: make(map[Phase]chan struct{}),
	}
	for ph := PhaseRunning; ph <= PhaseDone; ph++ {
		p.signals[ph] = make(chan struct{})
	}
	close(p.signals[PhaseRunning])
	return p
}

// current 返回当前阶段
func (p *phases) current() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// advance 推进到目标阶段，中间阶段的信号一并完成
//
// 只能向前推进。回调在锁外同步执行。
func (p *phases) advance(target Phase) error {
	p.mu.Lock()
	if target < p.phase {
		cur := p.phase
		p.mu.Unlock()
		return fmt.Errorf("cannot advance backwards: current=%s target=%s", cur, target)
	}
	if target == p.phase {
		p.mu.Unlock()
		return nil
	}

	old := p.phase
	for ph := old + 1; ph <= target; ph++ {
		close(p.signals[ph])
	}
	p.phase = target
	callbacks := append(([]func(old, new Phase))(nil), p.onChange...)
	p.mu.Unlock()

	logger.Info("关闭阶段推进", "from", old.String(), "to", target.String())

	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// waitFor 等待指定阶段完成
func (p *phases) waitFor(ctx context.Context, target Phase) error {
	p.mu.RLock()
	ch := p.signals[target]
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("invalid phase: %d", target)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completed 检查指定阶段是否已完成
func (p *phases) completed(target Phase) bool {
	p.mu.RLock()
	ch := p.signals[target]
	p.mu.RUnlock()

	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (p *phases) subscribe(fn func(old, new Phase)) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}
