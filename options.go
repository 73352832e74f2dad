package fusion

import (
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 统一配置
	cfg *config.Config

	// 预设名称，在所有选项之后应用
	preset string

	// 加入已有的共享段（同一地址空间内模拟多进程）
	shared *world.Shared

	// 显示层驱动
	layerDriver pkgif.LayerDriver

	// fx 事件日志
	fxLogger *zap.Logger

	// 用户扩展
	userFxOptions []fx.Option
}

// newOptions 应用选项并校验配置
func newOptions(opts ...Option) (*options, error) {
	o := &options{cfg: config.NewConfig()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := config.ApplyPreset(o.cfg, o.preset); err != nil {
		return nil, err
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return o, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置选项
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 配置会被克隆，调用方之后的修改不影响 Runtime。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.cfg = config.CloneConfig(cfg)
		return nil
	}
}

// WithPreset 应用预设（master/slave/test）
//
// 预设在其余选项之后应用，覆盖同名字段。
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// WithTransport 选择分发传输后端
func WithTransport(backend string) Option {
	return func(o *options) error {
		o.cfg.Transport.Backend = backend
		return nil
	}
}

// WithShutdownInfo 关闭时输出残留对象诊断
func WithShutdownInfo(enabled bool) Option {
	return func(o *options) error {
		o.cfg.Shutdown.Info = enabled
		return nil
	}
}

// WithMetrics 开关指标导出
func WithMetrics(enabled bool) Option {
	return func(o *options) error {
		o.cfg.Metrics.Enabled = enabled
		return nil
	}
}

// WithLayers 设置显示层数量
func WithLayers(count int) Option {
	return func(o *options) error {
		if count < 0 {
			return fmt.Errorf("invalid layer count %d", count)
		}
		o.cfg.Layer.Count = count
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件注入
// ════════════════════════════════════════════════════════════════════════════

// WithShared 加入已有的共享段
//
// 同一地址空间内的多个 Runtime 共享一个段即可模拟多进程 World。
func WithShared(shared *world.Shared) Option {
	return func(o *options) error {
		if shared == nil {
			return errors.New("shared segment is nil")
		}
		o.shared = shared
		return nil
	}
}

// WithLayerDriver 设置显示层驱动，未设置时使用空驱动
func WithLayerDriver(drv pkgif.LayerDriver) Option {
	return func(o *options) error {
		if drv == nil {
			return errors.New("layer driver is nil")
		}
		o.layerDriver = drv
		return nil
	}
}

// WithFxLogger 输出 fx 内部事件到 zap 日志
func WithFxLogger(l *zap.Logger) Option {
	return func(o *options) error {
		o.fxLogger = l
		return nil
	}
}

// WithFxOptions 追加用户自定义 fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
