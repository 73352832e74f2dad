// Package config 提供统一的配置管理
package config

import "fmt"

// ReactorConfig Reactor 配置
type ReactorConfig struct {
	// MessageSize 新建 Reactor 的默认消息大小（字节）
	// 默认值: 64
	MessageSize int `json:"message_size"`

	// MaxMessageSize Reactor 消息大小上限
	// 默认值: 4096
	MaxMessageSize int `json:"max_message_size"`

	// Direct 新建 Reactor 是否默认直接分发本地反应
	// 默认值: true
	Direct bool `json:"direct"`
}

// DefaultReactorConfig 返回默认的 Reactor 配置
func DefaultReactorConfig() ReactorConfig {
	return ReactorConfig{
		MessageSize:    64,
		MaxMessageSize: 4096,
		Direct:         true,
	}
}

// Validate 验证 Reactor 配置的有效性
func (c *ReactorConfig) Validate() error {
	if c.MessageSize < 1 {
		return fmt.Errorf("reactor: message_size must be >= 1")
	}
	if c.MessageSize > c.MaxMessageSize {
		return fmt.Errorf("reactor: message_size must be <= max_message_size")
	}
	return nil
}
