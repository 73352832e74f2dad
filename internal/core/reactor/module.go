package reactor

import (
	"context"

	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// Params Reactor 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	World      *world.World
	Transport  pkgif.Transport
}

// Module 返回 Reactor Fx 模块
//
// 提供:
//   - *Process: 本进程的 Reactor 上下文
//
// 生命周期:
//   - OnStart: 开始接收分发
//   - OnStop: 释放监听缓存并关闭传输
func Module() fx.Option {
	return fx.Module("reactor",
		fx.Provide(ProvideProcess),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置提取 Reactor 配置与传输负载上限
func ConfigFromUnified(cfg *config.Config) (config.ReactorConfig, int) {
	if cfg == nil {
		return config.DefaultReactorConfig(), config.DefaultTransportConfig().MaxMessageSize
	}
	return cfg.Reactor, cfg.Transport.MaxMessageSize
}

// ProvideProcess 创建进程上下文
func ProvideProcess(p Params) (*Process, error) {
	cfg, maxMessage := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewProcess(p.World, p.Transport, cfg, maxMessage), nil
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, p *Process) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := p.Start(); err != nil {
				logger.Error("启动分发接收失败", "error", err)
				return err
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := p.Close(); err != nil {
				logger.Warn("关闭分发传输失败", "error", err)
				return err
			}
			return nil
		},
	})
}
