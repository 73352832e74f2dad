package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/engine"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/engine/badger"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/kv"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// PropertyPrefix 对象属性的根前缀
const PropertyPrefix = "fusion/objects/"

// InternalEngine 属性存储引擎
type InternalEngine = engine.InternalEngine

// KVStore 属性键空间
type KVStore = kv.Store

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - InternalEngine: 属性存储引擎
//
// 生命周期:
//   - OnStart: 清除上一次会话遗留的对象属性（仅磁盘模式会有）
//   - OnStop: 关闭引擎
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(provideEngine),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigFromUnified 从统一配置提取存储配置
func ConfigFromUnified(cfg *config.Config) config.StorageConfig {
	if cfg == nil {
		return config.DefaultStorageConfig()
	}
	return cfg.Storage
}

func provideEngine(p Params) (InternalEngine, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewEngine(cfg)
}

func registerLifecycle(lc fx.Lifecycle, eng InternalEngine) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			n, err := Properties(eng).Clear()
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("清除遗留对象属性", "keys", n)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := eng.Close(); err != nil {
				logger.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			logger.Debug("存储引擎已关闭")
			return nil
		},
	})
}

// NewEngine 按配置打开 BadgerDB 引擎
func NewEngine(cfg config.StorageConfig) (InternalEngine, error) {
	eng, err := badger.New(engine.Config{InMemory: cfg.InMemory, Path: cfg.DBPath()})
	if err != nil {
		logger.Error("创建存储引擎失败", "in_memory", cfg.InMemory, "error", err)
		return nil, err
	}
	return eng, nil
}

// NewMemory 打开内存模式引擎
func NewMemory() (InternalEngine, error) {
	return NewEngine(config.DefaultStorageConfig())
}

// NewKVStore 以任意前缀创建键空间
func NewKVStore(eng InternalEngine, prefix []byte) *KVStore {
	return kv.New(eng, prefix)
}

// Properties 返回对象属性的根键空间
func Properties(eng InternalEngine) *KVStore {
	return kv.New(eng, []byte(PropertyPrefix))
}
