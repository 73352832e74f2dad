// Package config 提供统一的配置管理
package config

import "fmt"

// LayerConfig 显示层配置
type LayerConfig struct {
	// Count 创建的图层数量（0 表示不创建图层）
	// 默认值: 1
	Count int `json:"count"`

	// AlphaRamp 图层是否支持 alpha 渐变表
	// 默认值: false
	AlphaRamp bool `json:"alpha_ramp"`
}

// DefaultLayerConfig 返回默认的图层配置
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		Count:     1,
		AlphaRamp: false,
	}
}

// Validate 验证图层配置的有效性
func (c *LayerConfig) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("layer: count must be >= 0")
	}
	return nil
}
