package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "transport": {"backend": "socket"},
//	  "shutdown": {"info": true, "iterations": 100}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为带缩进的 JSON
func ToJSON(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "master": 特权仲裁传输，开启关闭诊断
//   - "slave": 套接字传输
//   - "test": 仅本进程传输，关闭等待预算压缩到 100ms
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "master":
		cfg.Transport.Backend = BackendPrivileged
		cfg.Shutdown.Info = true
		cfg.Pool.CaptureStacks = true
		return nil
	case "slave":
		cfg.Transport.Backend = BackendSocket
		return nil
	case "test":
		cfg.Transport.Backend = BackendLocal
		cfg.Shutdown.Iterations = 10
		cfg.Shutdown.Step = Duration(10 * time.Millisecond)
		cfg.Shutdown.PollInterval = Duration(time.Millisecond)
		cfg.Shutdown.TermTimeout = Duration(100 * time.Millisecond)
		cfg.Shutdown.KillTimeout = Duration(100 * time.Millisecond)
		cfg.Shutdown.EmergencyKillTimeout = Duration(100 * time.Millisecond)
		cfg.Metrics.Enabled = false
		return nil
	case "":
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}

// CloneConfig 克隆配置
//
// 所有子配置均为值类型，浅拷贝即深拷贝。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}
