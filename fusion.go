package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/layer"
	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/shutdown"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var logger = log.Logger("fusion")

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "Fusion " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// ════════════════════════════════════════════════════════════════════════════
//                              Runtime
// ════════════════════════════════════════════════════════════════════════════

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 30 * time.Second
)

// Runtime 一个进程在 World 中的全部组件
//
// 由 New 组装，Start 之后组件可用，Close 离开 World。
// Master 进程在 Close 时按关闭配置排空并销毁所有对象池。
type Runtime struct {
	cfg *config.Config
	app *fx.App

	mu      sync.Mutex
	started bool
	closed  bool

	world    *world.World
	process  *reactor.Process
	factory  *objpool.Factory
	coord    *shutdown.Coordinator
	layers   *layer.Layers
	registry *prometheus.Registry
}

// New 创建 Runtime
//
// 只组装组件，不启动传输。
//
// 示例：
//
//	rt, err := fusion.New(fusion.WithPreset("test"))
//	if err != nil {
//	    return err
//	}
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	defer rt.Close()
func New(opts ...Option) (*Runtime, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{cfg: o.cfg}
	rt.app, err = buildFxApp(o, rt)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	if err := rt.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return rt, nil
}

// Start 创建并启动 Runtime，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Runtime, error) {
	rt, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		return nil, fmt.Errorf("start runtime: %w", err)
	}
	return rt, nil
}

// Start 启动所有组件
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return ErrClosed
	}
	if rt.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := rt.app.Start(startCtx); err != nil {
		logger.Error("启动失败", "error", err)
		return err
	}
	rt.started = true

	logger.Info("已加入 World",
		"fusion_id", rt.world.ID(),
		"master", rt.world.IsMaster(),
		"transport", rt.cfg.Transport.Backend)
	return nil
}

// Shutdown 关闭整个 World 后停止本进程
//
// 只有 Master 可以调用。emergency 为 true 时跳过排空等待。
// 即使关闭流程报错，本进程的组件也会被停止，返回的错误包含两者。
func (rt *Runtime) Shutdown(ctx context.Context, emergency bool) error {
	rt.mu.Lock()
	if !rt.started || rt.closed {
		rt.mu.Unlock()
		return ErrNotStarted
	}
	rt.mu.Unlock()

	err := rt.coord.Shutdown(ctx, emergency)
	return multierr.Append(err, rt.Close())
}

// Close 停止本进程的所有组件并离开 World
//
// 重复调用返回 nil。
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil
	}
	rt.closed = true
	if !rt.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := rt.app.Stop(ctx); err != nil {
		logger.Warn("停止组件时出错", "error", err)
		return err
	}
	logger.Info("已离开 World")
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效的配置
func (rt *Runtime) Config() *config.Config {
	return rt.cfg
}

// World 返回本进程的 World 视图
func (rt *Runtime) World() *world.World {
	return rt.world
}

// Process 返回本进程的 Reactor 上下文
func (rt *Runtime) Process() *reactor.Process {
	return rt.process
}

// Pools 返回对象池工厂
func (rt *Runtime) Pools() *objpool.Factory {
	return rt.factory
}

// Layers 返回显示层
func (rt *Runtime) Layers() *layer.Layers {
	return rt.layers
}

// Coordinator 返回关闭协调器
func (rt *Runtime) Coordinator() *shutdown.Coordinator {
	return rt.coord
}

// Registry 返回指标注册表，指标关闭时为 nil
func (rt *Runtime) Registry() *prometheus.Registry {
	return rt.registry
}

// NewReactor 在本进程中创建 Reactor
func (rt *Runtime) NewReactor(msgSize int, name string) (*reactor.Reactor, error) {
	return reactor.New(rt.process, msgSize, name)
}
