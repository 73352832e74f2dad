package layer

import (
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// NullDriver 不连接任何显示硬件的驱动
//
// 接受所有配置，只记录调试日志。用于无显示设备的 Master 进程与测试。
type NullDriver struct{}

var _ pkgif.LayerDriver = NullDriver{}

// RegionDataSize 不需要区域数据
func (NullDriver) RegionDataSize() int { return 0 }

// TestRegion 接受所有配置
func (NullDriver) TestRegion(*types.RegionConfig) (types.RegionConfigFlags, error) {
	return types.ConfigNone, nil
}

// AddRegion 记录日志
func (NullDriver) AddRegion(_ []byte, cfg *types.RegionConfig) error {
	logger.Debug("空驱动添加区域", "width", cfg.Width, "height", cfg.Height, "buffer_mode", cfg.BufferMode)
	return nil
}

// SetRegion 记录日志
func (NullDriver) SetRegion(_ []byte, _ *types.RegionConfig, updated types.RegionConfigFlags, _, _ *types.BufferLock) error {
	logger.Debug("空驱动下发区域", "updated", uint32(updated))
	return nil
}

// RemoveRegion 记录日志
func (NullDriver) RemoveRegion([]byte) error {
	logger.Debug("空驱动移除区域")
	return nil
}

// FlipRegion 无操作
func (NullDriver) FlipRegion([]byte, types.FlipFlags, *types.Region, *types.BufferLock, *types.BufferLock) error {
	return nil
}

// UpdateRegion 无操作
func (NullDriver) UpdateRegion([]byte, *types.Region, *types.Region, *types.BufferLock, *types.BufferLock) error {
	return nil
}

// SetInputField 无操作
func (NullDriver) SetInputField([]byte, int) error {
	return nil
}
