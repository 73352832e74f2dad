// Package config 提供统一的配置管理
package config

import (
	"fmt"
	"time"
)

// 分发传输后端
const (
	// BackendPrivileged 由可信仲裁者一次调用完成扇出
	BackendPrivileged = "privileged"
	// BackendSocket 用户态数据报套接字扇出
	BackendSocket = "socket"
	// BackendLocal 仅本进程分发
	BackendLocal = "local"
)

// TransportConfig 分发传输配置
//
// 进程初始化时选定一次，之后 Reactor 对后端无感知。
type TransportConfig struct {
	// Backend 传输后端（privileged/socket/local）
	// 默认值: privileged
	Backend string `json:"backend"`

	// MaxMessageSize 单条消息负载上限（字节）
	// 默认值: 16384
	MaxMessageSize int `json:"max_message_size"`

	// AddressCacheSize 套接字地址缓存容量
	// 默认值: 128
	AddressCacheSize int `json:"address_cache_size"`

	// ReceiveTimeout 套接字接收超时，决定关闭时接收循环的退出延迟
	// 默认值: 100ms
	ReceiveTimeout Duration `json:"receive_timeout"`
}

// DefaultTransportConfig 返回默认的传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Backend:          BackendPrivileged,
		MaxMessageSize:   16384,
		AddressCacheSize: 128,
		ReceiveTimeout:   Duration(100 * time.Millisecond),
	}
}

// Validate 验证传输配置的有效性
func (c *TransportConfig) Validate() error {
	switch c.Backend {
	case BackendPrivileged, BackendSocket, BackendLocal:
	default:
		return fmt.Errorf("transport: unknown backend %q", c.Backend)
	}
	if c.MaxMessageSize < 1 {
		return fmt.Errorf("transport: max_message_size must be >= 1")
	}
	if c.AddressCacheSize < 1 {
		return fmt.Errorf("transport: address_cache_size must be >= 1")
	}
	if c.ReceiveTimeout <= 0 {
		return fmt.Errorf("transport: receive_timeout must be > 0")
	}
	return nil
}
