package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// defaultPoll 默认轮询间隔
const defaultPoll = 10 * time.Millisecond

// PoolRegistry 对象池注册表
//
// 由 *world.Shared 实现。
type PoolRegistry interface {
	Pools() []pkgif.ObjectPool
}

// Watchdog 轮询所有已登记对象池的存活对象数
type Watchdog struct {
	pools PoolRegistry
	clock clock.Clock
	poll  time.Duration
}

// NewWatchdog 创建 Watchdog
func NewWatchdog(pools PoolRegistry, clk clock.Clock, poll time.Duration) *Watchdog {
	if clk == nil {
		clk = clock.New()
	}
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Watchdog{pools: pools, clock: clk, poll: poll}
}

// Pending 返回所有池的存活对象总数
func (w *Watchdog) Pending() int {
	n := 0
	for _, p := range w.pools.Pools() {
		n += p.Size()
	}
	return n
}

// WaitAll 等待所有池归零
//
// 返回:
//   - error: 超时返回 types.ErrTimeout；ctx 取消返回 ctx.Err()
func (w *Watchdog) WaitAll(ctx context.Context, timeout time.Duration) error {
	if w.Pending() == 0 {
		return nil
	}

	timer := w.clock.Timer(timeout)
	defer timer.Stop()
	ticker := w.clock.Ticker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.Pending() == 0 {
				return nil
			}
		case <-timer.C:
			n := w.Pending()
			if n == 0 {
				return nil
			}
			return fmt.Errorf("%d objects still alive after %s: %w", n, timeout, types.ErrTimeout)
		}
	}
}
