package layer

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// Params Layer 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Factory    *objpool.Factory
	Process    *reactor.Process
	Driver     pkgif.LayerDriver `optional:"true"`
}

// Module 返回 Layer Fx 模块
//
// 提供:
//   - *Layers: 表面池与按配置创建的图层
//
// 生命周期:
//   - OnStop: 停用所有区域（对象池由关闭流程销毁）
func Module() fx.Option {
	return fx.Module("layer",
		fx.Provide(ProvideLayers),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置提取图层配置
func ConfigFromUnified(cfg *config.Config) config.LayerConfig {
	if cfg == nil {
		return config.DefaultLayerConfig()
	}
	return cfg.Layer
}

// Layers 本进程可见的图层集合
type Layers struct {
	surfaces *objpool.Pool
	layers   []*Layer
}

// ProvideLayers 创建表面池与图层
//
// 未注入驱动时使用 NullDriver。
func ProvideLayers(p Params) (*Layers, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drv := p.Driver
	if drv == nil {
		drv = NullDriver{}
	}
	return NewLayers(p.Factory, p.Process, drv, cfg)
}

// NewLayers 创建表面池与 cfg.Count 个共用驱动的图层
func NewLayers(f *objpool.Factory, proc *reactor.Process, drv pkgif.LayerDriver, cfg config.LayerConfig) (*Layers, error) {
	surfaces, err := NewSurfacePool(f)
	if err != nil {
		return nil, err
	}

	ls := &Layers{surfaces: surfaces}
	for i := 0; i < cfg.Count; i++ {
		l, err := NewLayer(f, proc, i, drv, Caps{AlphaRamp: cfg.AlphaRamp})
		if err != nil {
			_ = ls.Close()
			return nil, err
		}
		ls.layers = append(ls.layers, l)
	}
	return ls, nil
}

// Surfaces 返回表面对象池
func (ls *Layers) Surfaces() *objpool.Pool {
	return ls.surfaces
}

// Count 返回图层数量
func (ls *Layers) Count() int {
	return len(ls.layers)
}

// At 返回第 i 个图层
func (ls *Layers) At(i int) (*Layer, error) {
	if i < 0 || i >= len(ls.layers) {
		return nil, fmt.Errorf("layer %d of %d: %w", i, len(ls.layers), types.ErrNotFound)
	}
	return ls.layers[i], nil
}

// DisableAll 停用所有图层上的所有区域
func (ls *Layers) DisableAll() error {
	var errs error
	for _, l := range ls.layers {
		for _, r := range l.Regions() {
			errs = multierr.Append(errs, r.Disable())
		}
	}
	return errs
}

// Close 销毁所有区域池与表面池
func (ls *Layers) Close() error {
	var errs error
	for _, l := range ls.layers {
		errs = multierr.Append(errs, l.Close())
	}
	return multierr.Append(errs, ls.surfaces.Destroy())
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, ls *Layers) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := ls.DisableAll(); err != nil {
				logger.Warn("停用区域失败", "error", err)
				return err
			}
			return nil
		},
	})
}
