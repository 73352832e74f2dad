package interfaces

import "github.com/directfb2/DirectFB2-sub002/pkg/types"

// LayerDriver 显示层驱动
//
// 图层区域状态机的外部协作者。data 为驱动私有的区域数据，
// 大小由 RegionDataSize 决定，在共享内存区中分配。
// left/right 为缓冲锁，非立体表面时 right 为 nil；未锁定时两者均为 nil。
type LayerDriver interface {
	// RegionDataSize 返回驱动私有区域数据大小（0 表示不需要）
	RegionDataSize() int

	// TestRegion 检查配置是否受支持
	//
	// 返回:
	//   - types.RegionConfigFlags: 不受支持的字段
	//   - error: 不受支持时返回错误
	TestRegion(cfg *types.RegionConfig) (types.RegionConfigFlags, error)

	// AddRegion 在硬件上添加区域
	AddRegion(data []byte, cfg *types.RegionConfig) error

	// SetRegion 下发配置
	SetRegion(data []byte, cfg *types.RegionConfig, updated types.RegionConfigFlags, left, right *types.BufferLock) error

	// RemoveRegion 从硬件上移除区域
	RemoveRegion(data []byte) error

	// FlipRegion 交换缓冲
	FlipRegion(data []byte, flags types.FlipFlags, update *types.Region, left, right *types.BufferLock) error

	// UpdateRegion 通知驱动内容已更新
	UpdateRegion(data []byte, left, right *types.Region, leftLock, rightLock *types.BufferLock) error

	// SetInputField 设置隔行输入场
	SetInputField(data []byte, field int) error
}
