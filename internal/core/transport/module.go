package transport

import (
	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// Params Transport 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	World      *world.World
}

// Module 返回 Transport Fx 模块
//
// 提供:
//   - pkgif.Transport: 选定的分发传输
//
// 传输的启动与关闭由 reactor 模块负责。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransport),
	)
}

// ConfigFromUnified 从统一配置提取传输配置
func ConfigFromUnified(cfg *config.Config) config.TransportConfig {
	if cfg == nil {
		return config.DefaultTransportConfig()
	}
	return cfg.Transport
}

// ProvideTransport 创建传输后端
func ProvideTransport(p Params) (pkgif.Transport, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(p.World, cfg)
}
