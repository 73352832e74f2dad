package world

import (
	"context"

	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// Params World 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`

	// Shared 外部提供的共享段，多个模拟进程加入同一 World 时使用
	Shared *Shared `optional:"true"`
}

// Result World 模块提供的结果
type Result struct {
	fx.Out

	Shared *Shared
	World  *World
	Iface  pkgif.World
}

// Module 返回 World Fx 模块
//
// 提供:
//   - *Shared: 共享段
//   - *World: 本进程视图
//   - pkgif.World: 接口视图
//
// 生命周期:
//   - OnStop: 离开 World
func Module() fx.Option {
	return fx.Module("world",
		fx.Provide(ProvideWorld),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置提取 World 配置
func ConfigFromUnified(cfg *config.Config) config.WorldConfig {
	if cfg == nil {
		return config.DefaultWorldConfig()
	}
	return cfg.World
}

// ProvideWorld 创建或加入 World
func ProvideWorld(p Params) (Result, error) {
	shared := p.Shared
	if shared == nil {
		cfg := ConfigFromUnified(p.UnifiedCfg)
		if err := cfg.Validate(); err != nil {
			return Result{}, err
		}
		shared = NewShared(cfg)
	}

	w, err := Enter(shared)
	if err != nil {
		return Result{}, err
	}

	return Result{Shared: shared, World: w, Iface: w}, nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, w *World) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if w.Left() {
				return nil
			}
			logger.Info("正在离开 World", "fusion_id", w.ID())
			return w.Leave()
		},
	})
}
