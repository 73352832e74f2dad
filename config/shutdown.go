// Package config 提供统一的配置管理
package config

import (
	"fmt"
	"time"
)

// ShutdownConfig 关闭流程配置
//
// 正常关闭：排空所有对象池，按 Iterations × Step 的预算轮询 Size()；
// 随后对其余进程执行 SIGTERM → SIGKILL 阶梯。
// 紧急关闭：跳过等待，直接 SIGKILL。
type ShutdownConfig struct {
	// Iterations 排空等待的轮数
	// 默认值: 200
	Iterations int `json:"iterations"`

	// Step 每轮 WaitAll 的超时
	// 默认值: 10ms
	Step Duration `json:"step"`

	// PollInterval WaitAll 内部的轮询间隔
	// 默认值: 10ms
	PollInterval Duration `json:"poll_interval"`

	// Info 超时时是否输出每个残留对象的诊断信息
	// 默认值: false
	Info bool `json:"info"`

	// TermTimeout SIGTERM 后等待进程退出的时间
	// 默认值: 5s
	TermTimeout Duration `json:"term_timeout"`

	// KillTimeout SIGKILL 后等待进程退出的时间
	// 默认值: 2s
	KillTimeout Duration `json:"kill_timeout"`

	// EmergencyKillTimeout 紧急关闭时 SIGKILL 后的等待时间
	// 默认值: 1s
	EmergencyKillTimeout Duration `json:"emergency_kill_timeout"`
}

// DefaultShutdownConfig 返回默认的关闭配置
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Iterations:           200,
		Step:                 Duration(10 * time.Millisecond),
		PollInterval:         Duration(10 * time.Millisecond),
		Info:                 false,
		TermTimeout:          Duration(5 * time.Second),
		KillTimeout:          Duration(2 * time.Second),
		EmergencyKillTimeout: Duration(1 * time.Second),
	}
}

// Validate 验证关闭配置的有效性
func (c *ShutdownConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("shutdown: iterations must be >= 1")
	}
	if c.Step <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("shutdown: step and poll_interval must be > 0")
	}
	if c.TermTimeout < 0 || c.KillTimeout < 0 || c.EmergencyKillTimeout < 0 {
		return fmt.Errorf("shutdown: kill timeouts must be >= 0")
	}
	return nil
}

// Budget 返回排空等待的总预算
func (c *ShutdownConfig) Budget() time.Duration {
	return time.Duration(c.Iterations) * c.Step.Duration()
}
