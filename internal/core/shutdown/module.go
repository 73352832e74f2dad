package shutdown

import (
	"context"

	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
)

// Params Shutdown 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	World      *world.World
}

// Module 返回 Shutdown Fx 模块
//
// 提供:
//   - *Coordinator: 关闭协调器
//
// 生命周期:
//   - OnStop: Master 进程执行正常关闭（尚未关闭时）
func Module() fx.Option {
	return fx.Module("shutdown",
		fx.Provide(ProvideCoordinator),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置提取关闭配置
func ConfigFromUnified(cfg *config.Config) config.ShutdownConfig {
	if cfg == nil {
		return config.DefaultShutdownConfig()
	}
	return cfg.Shutdown
}

// ProvideCoordinator 创建关闭协调器
func ProvideCoordinator(p Params) (*Coordinator, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewCoordinator(p.World, cfg), nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, c *Coordinator) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if !c.world.IsMaster() || c.Phase() != PhaseRunning {
				return nil
			}
			return c.Shutdown(ctx, false)
		},
	})
}
