package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              区域状态
// ============================================================================

// RegionState 图层区域状态标志（可独立设置、组合检查）
type RegionState uint32

const (
	// RegionConfigured 已设置配置
	RegionConfigured RegionState = 0x01
	// RegionEnabled 已启用
	RegionEnabled RegionState = 0x02
	// RegionActive 已激活
	RegionActive RegionState = 0x04
	// RegionRealized 已在硬件上实现
	RegionRealized RegionState = 0x08
	// RegionFrozen 冻结：配置修改暂不下发硬件
	RegionFrozen RegionState = 0x10
)

// Has 检查是否包含全部给定标志
func (s RegionState) Has(flags RegionState) bool {
	return s&flags == flags
}

// String 返回状态标志的可读形式，如 "enabled|active"
func (s RegionState) String() string {
	if s == 0 {
		return "none"
	}
	names := []struct {
		flag RegionState
		name string
	}{
		{RegionConfigured, "configured"},
		{RegionEnabled, "enabled"},
		{RegionActive, "active"},
		{RegionRealized, "realized"},
		{RegionFrozen, "frozen"},
	}
	var parts []string
	for _, n := range names {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := s &^ (RegionConfigured | RegionEnabled | RegionActive | RegionRealized | RegionFrozen); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ============================================================================
//                              区域配置
// ============================================================================

// RegionConfigFlags 配置字段掩码
type RegionConfigFlags uint32

const (
	ConfigNone        RegionConfigFlags = 0x00000000
	ConfigWidth       RegionConfigFlags = 0x00000001
	ConfigHeight      RegionConfigFlags = 0x00000002
	ConfigFormat      RegionConfigFlags = 0x00000004
	ConfigSurfaceCaps RegionConfigFlags = 0x00000008
	ConfigBufferMode  RegionConfigFlags = 0x00000010
	ConfigOptions     RegionConfigFlags = 0x00000020
	ConfigSourceID    RegionConfigFlags = 0x00000040
	ConfigColorspace  RegionConfigFlags = 0x00000080
	ConfigSource      RegionConfigFlags = 0x00000100
	ConfigDest        RegionConfigFlags = 0x00000200
	ConfigClips       RegionConfigFlags = 0x00000400
	ConfigOpacity     RegionConfigFlags = 0x00001000
	ConfigAlphaRamp   RegionConfigFlags = 0x00002000
	ConfigSrcKey      RegionConfigFlags = 0x00010000
	ConfigDstKey      RegionConfigFlags = 0x00020000
	ConfigParity      RegionConfigFlags = 0x00100000
	ConfigSurface     RegionConfigFlags = 0x10000000
	ConfigPalette     RegionConfigFlags = 0x20000000
	ConfigFreeze      RegionConfigFlags = 0x40000000

	// ConfigAll 全部字段（含 Surface/Palette/Freeze）
	ConfigAll RegionConfigFlags = 0x701337FF
)

// ConfigLocksSurface 需要锁定前缓冲才能下发的字段
const ConfigLocksSurface = ConfigSurface | ConfigWidth | ConfigHeight | ConfigFormat |
	ConfigSrcKey | ConfigDstKey | ConfigOpacity | ConfigSource | ConfigDest

// BufferMode 缓冲模式
type BufferMode int

const (
	// BufferFrontOnly 单缓冲
	BufferFrontOnly BufferMode = iota
	// BufferBackVideo 显存后缓冲（交换）
	BufferBackVideo
	// BufferBackSystem 系统内存后缓冲（回拷）
	BufferBackSystem
	// BufferTriple 三缓冲（交换）
	BufferTriple
	// BufferWindows 窗口模式（不使用区域）
	BufferWindows
)

// LayerOptions 图层选项
type LayerOptions uint32

const (
	// OptionStereo 立体（左右眼）区域
	OptionStereo LayerOptions = 0x00000400
)

// Rectangle 矩形
type Rectangle struct {
	X, Y, W, H int
}

// Region 闭区间区域 [X1,X2]×[Y1,Y2]
type Region struct {
	X1, Y1, X2, Y2 int
}

// ColorKey 颜色键
type ColorKey struct {
	R, G, B uint8
	Index   int
}

// RegionConfig 图层区域配置
type RegionConfig struct {
	Width       int
	Height      int
	Format      uint32
	Colorspace  uint32
	SurfaceCaps uint32
	BufferMode  BufferMode
	Options     LayerOptions
	SourceID    int
	Source      Rectangle
	Dest        Rectangle
	Opacity     uint8
	SrcKey      ColorKey
	DstKey      ColorKey
	Parity      int
	AlphaRamp   [4]uint8
	Clips       []Region
	Positive    bool
	KeepBuffers bool
}

// Merge 将 from 中 flags 指定的字段合并到 c，返回新配置
//
// flags 为 ConfigAll 时直接使用 from。
func (c RegionConfig) Merge(from *RegionConfig, flags RegionConfigFlags) RegionConfig {
	if flags == ConfigAll {
		return *from
	}

	if flags&ConfigWidth != 0 {
		c.Width = from.Width
	}
	if flags&ConfigHeight != 0 {
		c.Height = from.Height
	}
	if flags&ConfigFormat != 0 {
		c.Format = from.Format
	}
	if flags&ConfigColorspace != 0 {
		c.Colorspace = from.Colorspace
	}
	if flags&ConfigSurfaceCaps != 0 {
		c.SurfaceCaps = from.SurfaceCaps
	}
	if flags&ConfigBufferMode != 0 {
		c.BufferMode = from.BufferMode
	}
	if flags&ConfigOptions != 0 {
		c.Options = from.Options
	}
	if flags&ConfigSourceID != 0 {
		c.SourceID = from.SourceID
	}
	if flags&ConfigSource != 0 {
		c.Source = from.Source
	}
	if flags&ConfigDest != 0 {
		c.Dest = from.Dest
	}
	if flags&ConfigOpacity != 0 {
		c.Opacity = from.Opacity
	}
	if flags&ConfigAlphaRamp != 0 {
		c.AlphaRamp = from.AlphaRamp
	}
	if flags&ConfigSrcKey != 0 {
		c.SrcKey = from.SrcKey
	}
	if flags&ConfigDstKey != 0 {
		c.DstKey = from.DstKey
	}
	if flags&ConfigParity != 0 {
		c.Parity = from.Parity
	}
	if flags&ConfigClips != 0 {
		c.Clips = append([]Region(nil), from.Clips...)
		c.Positive = from.Positive
	}
	return c
}

// ============================================================================
//                              缓冲与翻转
// ============================================================================

// BufferRole 缓冲角色
type BufferRole int

const (
	// BufferFront 前缓冲（正在显示）
	BufferFront BufferRole = iota
	// BufferBack 后缓冲（正在绘制）
	BufferBack
	// BufferIdle 空闲缓冲（三缓冲）
	BufferIdle
)

// Eye 立体缓冲的眼别
type Eye int

const (
	// EyeLeft 左眼（非立体表面的唯一缓冲）
	EyeLeft Eye = iota
	// EyeRight 右眼
	EyeRight
)

// BufferLock 缓冲锁
type BufferLock struct {
	Role   BufferRole
	Eye    Eye
	Index  int
	Pitch  int
	Handle any
}

// FlipFlags 翻转标志
type FlipFlags uint32

const (
	FlipNone        FlipFlags = 0x00000000
	FlipWait        FlipFlags = 0x00000001
	FlipBlit        FlipFlags = 0x00000002
	FlipOnSync      FlipFlags = 0x00000004
	FlipPipeline    FlipFlags = 0x00000008
	FlipSwap        FlipFlags = 0x00000010
	FlipUpdate      FlipFlags = 0x00000020
	FlipWaitForSync FlipFlags = FlipWait | FlipOnSync
)
