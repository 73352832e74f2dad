package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// ConfigFromUnified 从统一配置提取指标配置
func ConfigFromUnified(cfg *config.Config) config.MetricsConfig {
	if cfg == nil {
		return config.DefaultMetricsConfig()
	}
	return cfg.Metrics
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// RegisterParams 采集器注册参数
type RegisterParams struct {
	fx.In

	UnifiedCfg *config.Config       `optional:"true"`
	Registry   *prometheus.Registry `optional:"true"`
	Pools      PoolSource           `optional:"true"`
	Dispatch   DispatchSource       `optional:"true"`
	Arena      ArenaSource          `optional:"true"`
}

// Module 返回 Metrics Fx 模块
//
// 提供:
//   - *prometheus.Registry: 指标注册表（禁用时为 nil）
//
// 已提供的 PoolSource/DispatchSource/ArenaSource 会被注册为采集来源。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideRegistry),
		fx.Invoke(RegisterCollector),
	)
}

// ProvideRegistry 创建指标注册表
func ProvideRegistry(p Params) *prometheus.Registry {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled {
		return nil
	}
	return prometheus.NewRegistry()
}

// RegisterCollector 注册 Fusion 采集器
func RegisterCollector(p RegisterParams) error {
	if p.Registry == nil {
		return nil
	}

	cfg := ConfigFromUnified(p.UnifiedCfg)
	c := NewCollector(cfg.Namespace, p.Pools, p.Dispatch, p.Arena)
	if err := p.Registry.Register(c); err != nil {
		logger.Warn("注册指标采集器失败", "error", err)
		return err
	}
	logger.Debug("指标采集器已注册", "namespace", cfg.Namespace)
	return nil
}
