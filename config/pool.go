// Package config 提供统一的配置管理
package config

import "fmt"

// PoolConfig 对象池配置
type PoolConfig struct {
	// MaxObjects 单个池的对象上限（0 表示仅受共享内存区限制）
	// 默认值: 0
	MaxObjects int `json:"max_objects"`

	// CaptureStacks 创建对象时是否记录调用栈，用于泄漏诊断
	// 默认值: false
	CaptureStacks bool `json:"capture_stacks"`
}

// DefaultPoolConfig 返回默认的对象池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxObjects:    0,
		CaptureStacks: false,
	}
}

// Validate 验证对象池配置的有效性
func (c *PoolConfig) Validate() error {
	if c.MaxObjects < 0 {
		return fmt.Errorf("pool: max_objects must be >= 0")
	}
	return nil
}
