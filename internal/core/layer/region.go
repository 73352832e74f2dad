package layer

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// Region 图层区域
//
// 区域状态由五个独立标志组成：Configured、Enabled、Active、Realized、Frozen。
// Enabled 与 Active 同时成立且已配置时区域在硬件上实现（Realized）；
// 撤销任一标志即从硬件移除并进入 Frozen，直到下一次翻转重新下发配置。
type Region struct {
	layer *Layer
	obj   *objpool.Object

	mu        sync.Mutex
	state     types.RegionState
	config    types.RegionConfig
	data      []byte
	surface   Surface
	flipCount uint32
	pending   []func()

	// attachMu 串行化表面监听的挂接与撤销，始终在 mu 之外获取
	attachMu        sync.Mutex
	surfaceReaction *reactor.Reaction
	surfaceGlobal   *reactor.GlobalReaction
}

// ID 返回区域对象 ID
func (r *Region) ID() types.ObjectID {
	return r.obj.ID()
}

// Object 返回区域的池对象
func (r *Region) Object() *objpool.Object {
	return r.obj
}

// Layer 返回所属图层
func (r *Region) Layer() *Layer {
	return r.layer
}

// State 返回当前状态标志
func (r *Region) State() types.RegionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// FlipCount 返回最近一次表面更新事件的翻转计数
func (r *Region) FlipCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flipCount
}

// GetConfiguration 返回当前配置的副本
func (r *Region) GetConfiguration() types.RegionConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.config
	cfg.Clips = append([]types.Region(nil), r.config.Clips...)
	return cfg
}

// GetSurface 返回区域的表面
//
// 返回:
//   - error: 没有表面返回 types.ErrUnsupported
func (r *Region) GetSurface() (Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.surface == nil {
		return nil, fmt.Errorf("region %s has no surface: %w", r.ID(), types.ErrUnsupported)
	}
	return r.surface, nil
}

// Destroy 释放创建时持有的本地引用，引用归零后析构区域
func (r *Region) Destroy() error {
	return r.layer.pool.Unref(r.obj)
}

// unlock 释放区域锁，并在锁外执行锁内登记的后续动作
func (r *Region) unlock() {
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// ============================================================================
//                              配置
// ============================================================================

// SetConfiguration 合并并应用新配置
//
// flags 为 types.ConfigAll 时直接采用 cfg，否则只合并 flags 指定的字段。
// 合并结果先交驱动 TestRegion 检查；flags 含 types.ConfigFreeze 时区域
// 进入冻结；已实现且未冻结的区域立即下发硬件。
func (r *Region) SetConfiguration(cfg *types.RegionConfig, flags types.RegionConfigFlags) error {
	if cfg == nil {
		return fmt.Errorf("configure region: %w", types.ErrInvalidArgument)
	}
	if cfg.BufferMode == types.BufferWindows {
		return fmt.Errorf("configure region %s with windows buffer mode: %w", r.ID(), types.ErrUnsupported)
	}

	r.mu.Lock()
	defer r.unlock()

	next := r.config.Merge(cfg, flags)

	if failed, err := r.layer.driver.TestRegion(&next); err != nil {
		logger.Debug("驱动拒绝区域配置", "region", r.ID(), "failed", fmt.Sprintf("0x%08x", uint32(failed)), "error", err)
		return err
	}

	if flags&types.ConfigFreeze != 0 {
		r.state |= types.RegionFrozen
	}

	if r.state.Has(types.RegionRealized) && !r.state.Has(types.RegionFrozen) {
		if err := r.regionSet(&next, flags, r.surface); err != nil {
			return err
		}
	}

	r.config = next
	r.state |= types.RegionConfigured
	return nil
}

// ============================================================================
//                              启用与激活
// ============================================================================

// Enable 启用区域，已激活时在硬件上实现
//
// 重复启用无副作用。
func (r *Region) Enable() error {
	r.mu.Lock()
	defer r.unlock()

	if r.state.Has(types.RegionEnabled) {
		logger.Debug("区域已启用", "region", r.ID())
		return nil
	}
	if r.state.Has(types.RegionActive) {
		if err := r.realize(true); err != nil {
			return err
		}
	}
	r.state |= types.RegionEnabled
	return nil
}

// Disable 停用区域，已实现时从硬件移除
func (r *Region) Disable() error {
	r.mu.Lock()
	defer r.unlock()
	return r.disableLocked()
}

func (r *Region) disableLocked() error {
	if !r.state.Has(types.RegionEnabled) {
		return nil
	}
	if r.state.Has(types.RegionRealized) {
		if err := r.unrealize(); err != nil {
			return err
		}
	}
	r.state &^= types.RegionEnabled
	return nil
}

// Activate 激活区域，已启用时在硬件上实现
//
// 重复激活无副作用。
func (r *Region) Activate() error {
	r.mu.Lock()
	defer r.unlock()

	if r.state.Has(types.RegionActive) {
		logger.Debug("区域已激活", "region", r.ID())
		return nil
	}
	if r.state.Has(types.RegionEnabled) {
		if err := r.realize(true); err != nil {
			return err
		}
	}
	r.state |= types.RegionActive
	return nil
}

// Deactivate 取消激活，已实现时从硬件移除
func (r *Region) Deactivate() error {
	r.mu.Lock()
	defer r.unlock()

	if !r.state.Has(types.RegionActive) {
		return nil
	}
	if r.state.Has(types.RegionRealized) {
		if err := r.unrealize(); err != nil {
			return err
		}
	}
	r.state &^= types.RegionActive
	return nil
}

// ============================================================================
//                              实现与下发
// ============================================================================

// realize 在硬件上添加区域，set 为 true 时随后下发完整配置
//
// 冻结的区域不做任何事。调用前持有 r.mu。
func (r *Region) realize(set bool) error {
	if r.state.Has(types.RegionFrozen) {
		logger.Debug("区域已冻结，推迟实现", "region", r.ID())
		return nil
	}
	if r.state.Has(types.RegionRealized) {
		return nil
	}
	if !r.state.Has(types.RegionConfigured) {
		return fmt.Errorf("realize region %s: %w", r.ID(), ErrNotConfigured)
	}

	drv := r.layer.driver
	if size := drv.RegionDataSize(); size > 0 {
		data, err := r.layer.proc.World().AllocateShared(size)
		if err != nil {
			return fmt.Errorf("allocate region data: %w", err)
		}
		r.data = data
	}

	if err := drv.AddRegion(r.data, &r.config); err != nil {
		logger.Warn("添加区域失败", "layer", r.layer.id, "region", r.ID(), "error", err)
		r.freeData()
		return err
	}

	r.layer.addRealized(r)
	r.state |= types.RegionRealized

	if set {
		if err := r.regionSet(&r.config, types.ConfigAll, r.surface); err != nil {
			if uerr := r.unrealize(); uerr != nil {
				logger.Warn("回滚实现失败", "region", r.ID(), "error", uerr)
			}
			return err
		}
	}

	logger.Debug("区域已实现", "layer", r.layer.id, "region", r.ID())
	return nil
}

// unrealize 从硬件移除区域并进入冻结
//
// 未设置 KeepBuffers 时在释放区域锁之后释放表面缓冲。调用前持有 r.mu。
func (r *Region) unrealize() error {
	if err := r.layer.driver.RemoveRegion(r.data); err != nil {
		logger.Warn("移除区域失败", "layer", r.layer.id, "region", r.ID(), "error", err)
		return err
	}

	r.layer.removeRealized(r)
	r.freeData()

	r.state &^= types.RegionRealized
	r.state |= types.RegionFrozen

	if s := r.surface; s != nil && !r.config.KeepBuffers {
		r.pending = append(r.pending, s.DeallocateBuffers)
	}

	logger.Debug("区域已移除", "layer", r.layer.id, "region", r.ID())
	return nil
}

func (r *Region) freeData() {
	if r.data != nil {
		r.layer.proc.World().FreeShared(r.data)
		r.data = nil
	}
}

// regionSet 向驱动下发配置，冻结时跳过
//
// 涉及表面内容的字段在下发期间锁定前缓冲。调用前持有 r.mu，不得持有表面锁。
func (r *Region) regionSet(cfg *types.RegionConfig, flags types.RegionConfigFlags, s Surface) error {
	if r.state.Has(types.RegionFrozen) {
		return nil
	}

	var left, right *types.BufferLock
	if s != nil && flags&types.ConfigLocksSurface != 0 {
		var err error
		s.Lock()
		left, right, err = r.lockBuffers(s, types.BufferFront)
		s.Unlock()
		if err != nil {
			return err
		}
	}

	err := r.layer.driver.SetRegion(r.data, cfg, flags, left, right)
	if err != nil {
		logger.Warn("下发区域配置失败", "region", r.ID(), "flags", fmt.Sprintf("0x%08x", uint32(flags)), "error", err)
	}
	if left != nil {
		err = multierr.Append(err, unlockBuffers(s, left, right))
	}
	return err
}

// lockBuffers 按区域记录的翻转计数锁定缓冲，立体表面同时锁定右眼
func (r *Region) lockBuffers(s Surface, role types.BufferRole) (left, right *types.BufferLock, err error) {
	left, err = s.LockBuffer(role, types.EyeLeft, r.flipCount)
	if err != nil {
		return nil, nil, err
	}
	if s.Stereo() {
		right, err = s.LockBuffer(role, types.EyeRight, r.flipCount)
		if err != nil {
			_ = s.UnlockBuffer(left)
			return nil, nil, err
		}
	}
	return left, right, nil
}

func unlockBuffers(s Surface, left, right *types.BufferLock) error {
	return multierr.Append(s.UnlockBuffer(left), s.UnlockBuffer(right))
}

// ============================================================================
//                              表面
// ============================================================================

// SetSurface 替换区域的表面
//
// 已实现的区域先以新表面下发 Surface 与 Palette 字段；随后撤销旧表面的
// 监听，在新表面上挂接更新事件监听与通知全局反应。s 为 nil 时只解除关联。
func (r *Region) SetSurface(s Surface) error {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	r.mu.Lock()
	old := r.surface
	if old == s {
		r.unlock()
		return nil
	}
	if s != nil && r.state.Has(types.RegionRealized) {
		if err := r.regionSet(&r.config, types.ConfigSurface|types.ConfigPalette, s); err != nil {
			r.unlock()
			return err
		}
	}
	r.surface = s
	r.unlock()

	if old != nil {
		r.detachSurfaceLocked(old)
	}
	if s == nil {
		return nil
	}

	re, err := s.Reactor().Attach(r.layer.proc, ChannelEvent, regionEventReaction, r)
	if err != nil {
		r.dropSurface(s)
		return fmt.Errorf("attach region %s to surface %s: %w", r.ID(), s.ID(), err)
	}
	g, err := s.Reactor().AttachGlobal(SurfaceListenerIndex, r)
	if err != nil {
		_ = s.Reactor().Detach(re)
		r.dropSurface(s)
		return fmt.Errorf("attach region %s to surface %s: %w", r.ID(), s.ID(), err)
	}
	r.surfaceReaction = re
	r.surfaceGlobal = g

	logger.Debug("区域关联表面", "region", r.ID(), "surface", s.ID())
	return nil
}

// dropSurface 仍关联 s 时解除关联
func (r *Region) dropSurface(s Surface) {
	r.mu.Lock()
	if r.surface == s {
		r.surface = nil
	}
	r.unlock()
}

// detachSurfaceLocked 撤销 s 上的监听，调用前持有 attachMu
func (r *Region) detachSurfaceLocked(s Surface) {
	if r.surfaceGlobal != nil {
		if err := s.Reactor().DetachGlobal(r.surfaceGlobal); err != nil {
			logger.Debug("撤销表面全局反应失败", "region", r.ID(), "error", err)
		}
		r.surfaceGlobal = nil
	}
	if r.surfaceReaction != nil {
		if err := s.Reactor().Detach(r.surfaceReaction); err != nil {
			logger.Debug("撤销表面监听失败", "region", r.ID(), "error", err)
		}
		r.surfaceReaction = nil
	}
}

// destruct 区域析构：停用、撤销表面监听
func (r *Region) destruct() {
	r.mu.Lock()
	if err := r.disableLocked(); err != nil {
		logger.Warn("析构时停用区域失败", "region", r.ID(), "error", err)
	}
	s := r.surface
	r.surface = nil
	r.freeData()
	r.unlock()

	if s == nil {
		return
	}
	r.attachMu.Lock()
	r.detachSurfaceLocked(s)
	r.attachMu.Unlock()
}
