package objpool

import (
	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
)

// Params ObjPool 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Shared     *world.Shared
	Engine     storage.InternalEngine `optional:"true"`
}

// Module 返回 ObjPool Fx 模块
//
// 提供:
//   - *Factory: 按统一配置创建对象池
func Module() fx.Option {
	return fx.Module("objpool",
		fx.Provide(ProvideFactory),
	)
}

// ConfigFromUnified 从统一配置提取对象池配置与僵尸诊断开关
func ConfigFromUnified(cfg *config.Config) (config.PoolConfig, bool) {
	if cfg == nil {
		return config.DefaultPoolConfig(), config.DefaultShutdownConfig().Info
	}
	return cfg.Pool, cfg.Shutdown.Info
}

// Factory 对象池工厂
//
// 所有池共享同一份配置与属性存储。
type Factory struct {
	shared *world.Shared
	cfg    config.PoolConfig
	info   bool
	props  *storage.KVStore
}

// ProvideFactory 创建对象池工厂
func ProvideFactory(p Params) (*Factory, error) {
	cfg, info := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Factory{shared: p.Shared, cfg: cfg, info: info}
	if p.Engine != nil {
		f.props = storage.Properties(p.Engine)
	}
	return f, nil
}

// NewFactory 创建对象池工厂（不经过 Fx）
func NewFactory(shared *world.Shared, cfg config.PoolConfig, info bool, eng storage.InternalEngine) *Factory {
	f := &Factory{shared: shared, cfg: cfg, info: info}
	if eng != nil {
		f.props = storage.Properties(eng)
	}
	return f
}

// NewPool 创建对象池，opts 在工厂默认选项之后应用
func (f *Factory) NewPool(name string, objSize, msgSize int, destructor Destructor, opts ...Option) (*Pool, error) {
	base := []Option{WithConfig(f.cfg), WithZombieInfo(f.info)}
	if f.props != nil {
		base = append(base, WithProperties(f.props))
	}
	return New(f.shared, name, objSize, msgSize, destructor, append(base, opts...)...)
}
