// Package engine 定义属性存储引擎的内部接口
//
// 在 pkg/interfaces.PropertyEngine 之上增加前缀扫描与前缀删除，
// 对象销毁时需要一次清除其全部属性。
package engine

import (
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// InternalEngine 内部扩展接口
type InternalEngine interface {
	pkgif.PropertyEngine

	// Scan 按键序遍历具有 prefix 前缀的键值对
	//
	// fn 返回 false 时停止遍历。key/value 在回调返回后不再有效。
	Scan(prefix []byte, fn func(key, value []byte) bool) error

	// DeletePrefix 删除具有 prefix 前缀的全部键
	//
	// 返回:
	//   - int: 删除的键数
	DeletePrefix(prefix []byte) (int, error)
}

// Config 引擎配置
type Config struct {
	// InMemory 是否使用内存模式
	InMemory bool

	// Path 数据库目录（InMemory 为 false 时必需）
	Path string
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}
	return nil
}
