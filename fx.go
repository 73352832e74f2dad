package fusion

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/directfb2/DirectFB2-sub002/internal/core/layer"
	"github.com/directfb2/DirectFB2-sub002/internal/core/metrics"
	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/shutdown"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var fxLogger = log.Logger("fusion/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. World → Transport → Reactor
//  2. Storage → Metrics → ObjPool
//  3. Shutdown → Layer
//
// OnStop 按相反顺序执行：先停用区域，再由 Master 排空并销毁对象池，
// 最后关闭存储、传输并离开 World。
func buildFxApp(o *options, rt *Runtime) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(o.cfg),
	}
	if o.shared != nil {
		modules = append(modules, fx.Supply(o.shared))
	}
	if o.layerDriver != nil {
		drv := o.layerDriver
		modules = append(modules, fx.Provide(func() pkgif.LayerDriver { return drv }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		world.Module(),     // 共享段与进程身份
		transport.Module(), // 分发传输
		reactor.Module(),   // Reactor 进程上下文
		storage.Module(),   // 对象属性存储
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 指标（采集来源始终提供，注册表按配置创建）
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Provide(
			func(s *world.Shared) metrics.PoolSource { return s },
			func(s *world.Shared) metrics.ArenaSource { return s },
			func(p *reactor.Process) metrics.DispatchSource { return p },
		),
		metrics.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 对象池、关闭与显示层
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		objpool.Module(),
		shutdown.Module(),
		layer.Module(),
		fx.Invoke(wireDrainHooks),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. Runtime 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectRuntimeComponents(rt)))

	// ════════════════════════════════════════════════════════════════════════
	// 7. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	zl := o.fxLogger
	if zl == nil {
		zl = zap.NewNop()
	}
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: zl}
	}))

	return fx.New(modules...), nil
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// runtimeInjectParams Runtime 组件注入参数
type runtimeInjectParams struct {
	fx.In

	World       *world.World
	Process     *reactor.Process
	Factory     *objpool.Factory
	Coordinator *shutdown.Coordinator
	Layers      *layer.Layers
	Registry    *prometheus.Registry `optional:"true"`
}

// injectRuntimeComponents 把 fx 构建的组件注入 Runtime
func injectRuntimeComponents(rt *Runtime) interface{} {
	return func(p runtimeInjectParams) {
		rt.world = p.World
		rt.process = p.Process
		rt.factory = p.Factory
		rt.coord = p.Coordinator
		rt.layers = p.Layers
		rt.registry = p.Registry

		p.Process.SetLeaveCallback(func(id types.FusionID) {
			fxLogger.Info("进程已离开 World", "fusion_id", id)
		})
	}
}

// wireDrainHooks 排空阶段停用所有区域，让区域持有的表面引用尽快归还
func wireDrainHooks(c *shutdown.Coordinator, ls *layer.Layers) {
	c.OnDrain(func() {
		if err := ls.DisableAll(); err != nil {
			fxLogger.Warn("排空时停用区域失败", "error", err)
		}
	})
}
