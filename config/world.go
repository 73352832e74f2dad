// Package config 提供统一的配置管理
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pbnjay/memory"
)

const (
	// minArenaSize 最小共享内存区大小
	minArenaSize = 1 << 20

	// maxDefaultArenaSize 默认共享内存区上限
	maxDefaultArenaSize = 256 << 20
)

// WorldConfig World 配置
//
// World 是多个进程共享的会话：一块共享内存区加上进程注册表。
type WorldConfig struct {
	// Index World 编号，用于区分同一主机上的多个 World
	// 默认值: 0
	Index int `json:"index"`

	// ArenaSize 共享内存区大小（字节）
	// 默认值: 物理内存的 1/16，不超过 256MB
	ArenaSize int64 `json:"arena_size"`

	// SocketDir 进程套接字根目录
	// 实际目录为 ${SocketDir}/.fusion-${Index}
	// 默认值: os.TempDir()
	SocketDir string `json:"socket_dir"`

	// Executable 本进程的可执行文件名，用于对象访问控制
	// 默认值: 当前可执行文件名
	Executable string `json:"executable"`
}

// DefaultWorldConfig 返回默认的 World 配置
func DefaultWorldConfig() WorldConfig {
	exe, _ := os.Executable()

	return WorldConfig{
		Index:      0,
		ArenaSize:  defaultArenaSize(memory.TotalMemory()),
		SocketDir:  os.TempDir(),
		Executable: filepath.Base(exe),
	}
}

// defaultArenaSize 根据物理内存计算默认共享内存区大小
func defaultArenaSize(total uint64) int64 {
	size := int64(total / 16)
	if size < minArenaSize {
		return minArenaSize
	}
	if size > maxDefaultArenaSize {
		return maxDefaultArenaSize
	}
	return size
}

// Validate 验证 World 配置的有效性
func (c *WorldConfig) Validate() error {
	if c.Index < 0 {
		return fmt.Errorf("world: index must be >= 0")
	}
	if c.ArenaSize < minArenaSize {
		return fmt.Errorf("world: arena_size must be >= %d", minArenaSize)
	}
	if c.SocketDir == "" {
		return fmt.Errorf("world: socket_dir cannot be empty")
	}
	return nil
}

// SocketPath 返回本 World 的套接字目录
func (c *WorldConfig) SocketPath() string {
	return filepath.Join(c.SocketDir, fmt.Sprintf(".fusion-%d", c.Index))
}
