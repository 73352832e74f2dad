// Package config 提供统一的配置管理
package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 对象属性保存在 BadgerDB 中，默认使用内存模式，随 World 一起消失。
// 指定 DataDir 并关闭 InMemory 后属性会落盘，用于调试现场保留。
//
// 数据目录结构：
//
//	${DataDir}/
//	└── fusion.db/          # BadgerDB 数据库
type StorageConfig struct {
	// InMemory 是否使用内存模式
	// 默认值: true
	InMemory bool `json:"in_memory"`

	// DataDir 数据目录路径（InMemory=false 时必需）
	// 默认值: ""
	DataDir string `json:"data_dir"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		InMemory: true,
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty when in_memory is false")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	if c.InMemory {
		return ""
	}
	return filepath.Join(c.DataDir, "fusion.db")
}
