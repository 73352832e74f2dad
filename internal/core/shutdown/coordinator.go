package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("core/shutdown")

// Coordinator 关闭协调器
//
// 只有 Master 进程可以发起关闭：排空对象池、在预算内等待对象归零、
// 销毁残留对象池，最后终止其余进程。
type Coordinator struct {
	world    *world.World
	shared   *world.Shared
	cfg      config.ShutdownConfig
	watchdog *Watchdog
	phases   *phases

	mu         sync.Mutex
	drainHooks []func()
	started    bool
}

// NewCoordinator 创建关闭协调器
func NewCoordinator(w *world.World, cfg config.ShutdownConfig) *Coordinator {
	shared := w.Shared()
	return &Coordinator{
		world:    w,
		shared:   shared,
		cfg:      cfg,
		watchdog: NewWatchdog(shared, shared.Clock(), cfg.PollInterval.Duration()),
		phases:   newPhases(),
	}
}

// Watchdog 返回对象池 Watchdog
func (c *Coordinator) Watchdog() *Watchdog {
	return c.watchdog
}

// OnDrain 注册排空钩子，在所有对象池进入排空状态之后调用
func (c *Coordinator) OnDrain(fn func()) {
	c.mu.Lock()
	c.drainHooks = append(c.drainHooks, fn)
	c.mu.Unlock()
}

// OnPhaseChange 注册阶段变更回调
func (c *Coordinator) OnPhaseChange(fn func(old, new Phase)) {
	c.phases.subscribe(fn)
}

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	return c.phases.current()
}

// WaitFor 等待指定阶段完成
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	return c.phases.waitFor(ctx, phase)
}

// IsCompleted 检查指定阶段是否已完成
func (c *Coordinator) IsCompleted(phase Phase) bool {
	return c.phases.completed(phase)
}

// ============================================================================
// 关闭流程
// ============================================================================

// Shutdown 关闭 World
//
// emergency 为 true 时跳过排空等待，直接以 SIGKILL 终止其余进程。
// 返回的错误可能同时包含排空超时、池销毁失败与终止失败。
//
// 返回:
//   - error: 非 Master 返回 types.ErrAccessDenied；重复调用返回 types.ErrBusy；
//     排空超时包含 types.ErrTimeout
func (c *Coordinator) Shutdown(ctx context.Context, emergency bool) error {
	if !c.world.IsMaster() {
		return fmt.Errorf("shutdown from %s: %w", c.world.ID(), types.ErrAccessDenied)
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("shutdown already in progress: %w", types.ErrBusy)
	}
	c.started = true
	hooks := append([]func(){}, c.drainHooks...)
	c.mu.Unlock()

	logger.Info("开始关闭", "emergency", emergency, "pools", len(c.shared.Pools()))

	var errs error
	if !emergency {
		errs = multierr.Append(errs, c.drain(ctx, hooks))
	}

	_ = c.phases.advance(PhaseDestroying)
	errs = multierr.Append(errs, c.destroyPools())

	_ = c.phases.advance(PhaseKilling)
	errs = multierr.Append(errs, c.killOthers(ctx, emergency))

	_ = c.phases.advance(PhaseDone)
	if errs != nil {
		logger.Warn("关闭完成但存在错误", "error", errs)
	} else {
		logger.Info("关闭完成")
	}
	return errs
}

// drain 排空所有池并等待归零
func (c *Coordinator) drain(ctx context.Context, hooks []func()) error {
	_ = c.phases.advance(PhaseDraining)
	for _, pool := range c.shared.Pools() {
		pool.Drain()
	}
	for _, hook := range hooks {
		hook()
	}

	_ = c.phases.advance(PhaseWaiting)
	step := c.cfg.Step.Duration()

	var err error
	for i := 0; i < c.cfg.Iterations; i++ {
		err = c.watchdog.WaitAll(ctx, step)
		if err == nil {
			return nil
		}
		if !errors.Is(err, types.ErrTimeout) {
			return err
		}
	}

	logger.Warn("排空超时", "budget", c.cfg.Budget(), "pending", c.watchdog.Pending())
	if c.cfg.Info {
		c.dump()
	}
	return fmt.Errorf("drain after %s: %w", c.cfg.Budget(), err)
}

// dump 输出所有残留对象的诊断信息
func (c *Coordinator) dump() {
	for _, pool := range c.shared.Pools() {
		pool.Dump(func(info pkgif.ObjectInfo) {
			logger.Warn("残留对象",
				"pool", pool.Name(),
				"object", info.ID,
				"refs", info.Refs,
				"global_refs", info.GlobalRefs,
				"state", info.State.String(),
				"creator", info.Creator,
				"stack", info.Stack)
		})
	}
}

// destroyPools 销毁所有已登记的池
func (c *Coordinator) destroyPools() error {
	var errs error
	for _, pool := range c.shared.Pools() {
		if err := pool.Destroy(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("destroy pool %q: %w", pool.Name(), err))
		}
	}
	return errs
}

// killOthers 并发终止除自身外的所有进程
func (c *Coordinator) killOthers(ctx context.Context, emergency bool) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)

	for _, p := range c.shared.Processes() {
		if p.ID == c.world.ID() {
			continue
		}
		id := p.ID
		g.Go(func() error {
			if err := c.kill(ctx, id, emergency); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// kill 按阶梯终止单个进程
//
// 紧急：SIGKILL。正常：SIGTERM，超时后 SIGKILL。
func (c *Coordinator) kill(ctx context.Context, id types.FusionID, emergency bool) error {
	if emergency {
		return c.signal(ctx, id, unix.SIGKILL, c.cfg.EmergencyKillTimeout.Duration())
	}

	err := c.signal(ctx, id, unix.SIGTERM, c.cfg.TermTimeout.Duration())
	if !errors.Is(err, types.ErrTimeout) {
		return err
	}
	logger.Warn("进程未响应 SIGTERM，改用 SIGKILL", "fusion_id", id)
	return c.signal(ctx, id, unix.SIGKILL, c.cfg.KillTimeout.Duration())
}

func (c *Coordinator) signal(ctx context.Context, id types.FusionID, sig unix.Signal, timeout time.Duration) error {
	err := c.shared.Kill(ctx, id, sig, timeout)
	if errors.Is(err, world.ErrUnknownProcess) {
		return nil
	}
	return err
}
