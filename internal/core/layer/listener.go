package layer

import (
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// SurfaceListenerIndex 区域表面监听在全局反应表中的下标
const SurfaceListenerIndex = 0

// SurfaceGlobals 表面通知的全局反应表
var SurfaceGlobals []reactor.GlobalFunc

func init() {
	SurfaceGlobals = []reactor.GlobalFunc{
		SurfaceListenerIndex: regionSurfaceListener,
	}
}

// regionSurfaceListener 把表面通知同步到区域
//
// 在分发进程内、分发锁之下运行。调色板、隔行场与 alpha 渐变表的变化
// 只在区域已实现、已配置且未冻结时下发驱动。
func regionSurfaceListener(msg []byte, ctx any) types.ReactionResult {
	r, ok := ctx.(*Region)
	if !ok {
		return types.RSRemove
	}

	n, _, err := decodeMessage(msg)
	if err != nil {
		logger.Warn("无法解码表面通知", "region", r.ID(), "error", err)
		return types.RSOK
	}

	r.mu.Lock()
	defer r.unlock()

	s := r.surface
	if s == nil || s.ID() != n.Surface {
		return types.RSOK
	}

	switch {
	case n.Flags&NotifyBufferAllocationDestroy != 0:
		return types.RSOK
	case n.Flags&NotifyDestroy != 0:
		logger.Warn("区域的表面已销毁", "region", r.ID(), "surface", n.Surface)
		r.surface = nil
		return types.RSRemove
	case n.Flags&NotifyDisplay != 0:
		return types.RSOK
	}

	if !r.state.Has(types.RegionRealized|types.RegionConfigured) || r.state.Has(types.RegionFrozen) {
		return types.RSOK
	}

	drv := r.layer.driver

	if n.Flags&(NotifyPaletteChange|NotifyPaletteUpdate) == NotifyPaletteChange|NotifyPaletteUpdate && s.HasPalette() {
		if err := r.setWithBackBuffers(s, types.ConfigPalette); err != nil {
			logger.Warn("下发调色板失败", "region", r.ID(), "error", err)
		}
	}

	if n.Flags&NotifyField != 0 {
		if err := drv.SetInputField(r.data, s.Field()); err != nil {
			logger.Warn("设置隔行场失败", "region", r.ID(), "error", err)
		}
	}

	if n.Flags&NotifyAlphaRamp != 0 && r.layer.caps.AlphaRamp {
		r.config.AlphaRamp = s.AlphaRamp()
		if err := r.setWithBackBuffers(s, types.ConfigAlphaRamp); err != nil {
			logger.Warn("下发 alpha 渐变表失败", "region", r.ID(), "error", err)
		}
	}

	return types.RSOK
}

// setWithBackBuffers 锁定后缓冲并下发 flags 指定的字段，调用前持有 r.mu
func (r *Region) setWithBackBuffers(s Surface, flags types.RegionConfigFlags) error {
	s.Lock()
	defer s.Unlock()

	left, right, err := r.lockBuffers(s, types.BufferBack)
	if err != nil {
		return err
	}
	err = r.layer.driver.SetRegion(r.data, &r.config, flags, left, right)
	if uerr := unlockBuffers(s, left, right); err == nil {
		err = uerr
	}
	return err
}

// regionEventReaction 处理表面事件：更新时翻转区域，销毁时移除监听
func regionEventReaction(msg []byte, ctx any) types.ReactionResult {
	r, ok := ctx.(*Region)
	if !ok {
		return types.RSRemove
	}

	_, e, err := decodeMessage(msg)
	if err != nil {
		logger.Warn("无法解码表面事件", "region", r.ID(), "error", err)
		return types.RSOK
	}

	switch e.Type {
	case EventUpdate:
		r.mu.Lock()
		r.flipCount = e.FlipCount
		stereo := r.config.Options&types.OptionStereo != 0
		r.mu.Unlock()

		flags := types.FlipOnSync | types.FlipUpdate
		if stereo {
			err = r.FlipUpdateStereo(&e.Update, &e.UpdateRight, flags)
		} else {
			err = r.FlipUpdate(&e.Update, flags)
		}
		if err != nil {
			logger.Debug("表面更新翻转失败", "region", r.ID(), "flip_count", e.FlipCount, "error", err)
		}

	case EventDestroyed:
		return types.RSRemove
	}
	return types.RSOK
}
