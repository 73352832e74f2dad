package layer

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// FlipUpdate 显示表面的新内容
//
// 冻结的区域先解冻：已实现的重新下发完整配置，已启用且已激活的重新实现。
// 随后按缓冲模式交换缓冲或回拷更新区域，并通知驱动内容已更新。
// 立体区域转交 FlipUpdateStereo，左右眼使用同一更新区域。
//
// 返回:
//   - error: 没有表面或缓冲模式不支持翻转时返回 types.ErrUnsupported
func (r *Region) FlipUpdate(update *types.Region, flags types.FlipFlags) error {
	r.mu.Lock()
	defer r.unlock()

	if r.config.Options&types.OptionStereo != 0 {
		return r.flipStereo(update, update, flags)
	}
	return r.flipMono(update, flags)
}

// FlipUpdateStereo 显示立体表面的新内容
//
// 返回:
//   - error: 区域未配置立体选项或没有表面返回 types.ErrUnsupported
func (r *Region) FlipUpdateStereo(left, right *types.Region, flags types.FlipFlags) error {
	r.mu.Lock()
	defer r.unlock()

	if r.config.Options&types.OptionStereo == 0 {
		return fmt.Errorf("stereo flip on mono region %s: %w", r.ID(), types.ErrUnsupported)
	}
	return r.flipStereo(left, right, flags)
}

// unfreeze 解冻区域并让硬件追上当前配置，调用前持有 r.mu
func (r *Region) unfreeze(s Surface) error {
	if !r.state.Has(types.RegionFrozen) {
		return nil
	}
	r.state &^= types.RegionFrozen

	var err error
	switch {
	case r.state.Has(types.RegionRealized):
		err = r.regionSet(&r.config, types.ConfigAll, s)
	case r.state.Has(types.RegionEnabled | types.RegionActive):
		err = r.realize(true)
	}
	if err != nil {
		logger.Warn("解冻区域失败", "region", r.ID(), "state", r.state, "error", err)
	}
	return err
}

func (r *Region) flipMono(update *types.Region, flags types.FlipFlags) error {
	s := r.surface
	if s == nil {
		return fmt.Errorf("flip region %s without surface: %w", r.ID(), types.ErrUnsupported)
	}
	if err := r.unfreeze(s); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if flags&types.FlipUpdate != 0 {
		return r.updateMono(s, update)
	}

	switch r.config.BufferMode {
	case types.BufferTriple, types.BufferBackVideo:
		if flags&types.FlipSwap != 0 || (flags&types.FlipBlit == 0 && coversSurface(s, update)) {
			return r.swapBuffers(s, flags, update)
		}
		s.BackToFront(update, types.EyeLeft)
		return r.updateMono(s, update)

	case types.BufferBackSystem:
		s.BackToFront(update, types.EyeLeft)
		return r.updateMono(s, update)

	case types.BufferFrontOnly:
		return r.updateMono(s, update)

	default:
		return fmt.Errorf("flip region %s in buffer mode %d: %w", r.ID(), r.config.BufferMode, types.ErrUnsupported)
	}
}

func (r *Region) flipStereo(left, right *types.Region, flags types.FlipFlags) error {
	s := r.surface
	if s == nil {
		return fmt.Errorf("flip region %s without surface: %w", r.ID(), types.ErrUnsupported)
	}
	if err := r.unfreeze(s); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if flags&types.FlipUpdate != 0 {
		return r.updateStereo(s, left, right)
	}

	switch r.config.BufferMode {
	case types.BufferTriple, types.BufferBackVideo:
		full := (left == nil && right == nil) || (coversSurface(s, left) && coversSurface(s, right))
		if flags&types.FlipSwap != 0 || (flags&types.FlipBlit == 0 && full) {
			return r.swapBuffers(s, flags, left)
		}
		r.backToFrontStereo(s, left, right)
		return r.updateStereo(s, left, right)

	case types.BufferBackSystem:
		r.backToFrontStereo(s, left, right)
		return r.updateStereo(s, left, right)

	case types.BufferFrontOnly:
		return r.updateStereo(s, left, right)

	default:
		return fmt.Errorf("flip region %s in buffer mode %d: %w", r.ID(), r.config.BufferMode, types.ErrUnsupported)
	}
}

// swapBuffers 交换前后缓冲：已实现时交由驱动翻转，否则只在表面上交换
func (r *Region) swapBuffers(s Surface, flags types.FlipFlags, update *types.Region) error {
	if !r.state.Has(types.RegionRealized) {
		s.FlipBuffers()
		return nil
	}

	left, right, err := r.lockBuffers(s, types.BufferBack)
	if err != nil {
		return err
	}
	err = r.layer.driver.FlipRegion(r.data, flags, update, left, right)
	s.NotifyDisplay(left.Index)
	return multierr.Append(err, unlockBuffers(s, left, right))
}

func (r *Region) backToFrontStereo(s Surface, left, right *types.Region) {
	both := left == nil && right == nil
	if left != nil || both {
		s.BackToFront(left, types.EyeLeft)
	}
	if s.Stereo() && (right != nil || both) {
		s.BackToFront(right, types.EyeRight)
	}
}

// updateMono 已实现时通知驱动前缓冲内容已更新
func (r *Region) updateMono(s Surface, update *types.Region) error {
	if !r.state.Has(types.RegionRealized) {
		return nil
	}

	left, right, err := r.lockBuffers(s, types.BufferFront)
	if err != nil {
		return err
	}
	if update == nil {
		full := r.fullRegion()
		update = &full
	}

	err = r.layer.driver.UpdateRegion(r.data, update, nil, left, right)
	s.NotifyDisplay(left.Index)
	return multierr.Append(err, unlockBuffers(s, left, right))
}

// updateStereo 立体版本的 updateMono，缺失的一侧沿用另一侧的区域
func (r *Region) updateStereo(s Surface, leftUpdate, rightUpdate *types.Region) error {
	if !r.state.Has(types.RegionRealized) {
		return nil
	}

	left, right, err := r.lockBuffers(s, types.BufferFront)
	if err != nil {
		return err
	}

	switch {
	case leftUpdate == nil && rightUpdate == nil:
		full := r.fullRegion()
		leftUpdate, rightUpdate = &full, &full
	case leftUpdate == nil:
		leftUpdate = rightUpdate
	case rightUpdate == nil:
		rightUpdate = leftUpdate
	}

	err = r.layer.driver.UpdateRegion(r.data, leftUpdate, rightUpdate, left, right)
	return multierr.Append(err, unlockBuffers(s, left, right))
}

func (r *Region) fullRegion() types.Region {
	return types.Region{X2: r.config.Width - 1, Y2: r.config.Height - 1}
}

// coversSurface update 为 nil 或覆盖整个表面
func coversSurface(s Surface, update *types.Region) bool {
	if update == nil {
		return true
	}
	w, h := s.Size()
	return update.X1 == 0 && update.Y1 == 0 && update.X2 == w-1 && update.Y2 == h-1
}
