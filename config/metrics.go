// Package config 提供统一的配置管理
package config

import "fmt"

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	// 默认值: true
	Enabled bool `json:"enabled"`

	// Namespace Prometheus 指标命名空间
	// 默认值: "fusion"
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认的指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "fusion",
	}
}

// Validate 验证指标配置的有效性
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return fmt.Errorf("metrics: namespace cannot be empty")
	}
	return nil
}
