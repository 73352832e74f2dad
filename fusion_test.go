package fusion

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/layer"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/shutdown"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// testConfig 本进程传输、压缩关闭预算的配置
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	require.NoError(t, config.ApplyPreset(cfg, "test"))
	cfg.World.SocketDir = t.TempDir()
	cfg.World.ArenaSize = 1 << 20
	return cfg
}

func startRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// countingDriver 统计 AddRegion 调用次数
type countingDriver struct {
	layer.NullDriver

	mu   sync.Mutex
	adds int
}

func (d *countingDriver) AddRegion(data []byte, cfg *types.RegionConfig) error {
	d.mu.Lock()
	d.adds++
	d.mu.Unlock()
	return d.NullDriver.AddRegion(data, cfg)
}

func (d *countingDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adds
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestRuntime_Lifecycle(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))
	assert.ErrorIs(t, rt.Start(context.Background()), ErrAlreadyStarted)

	require.NotNil(t, rt.World())
	assert.True(t, rt.World().IsMaster())
	assert.NotNil(t, rt.Process())
	assert.NotNil(t, rt.Pools())
	assert.NotNil(t, rt.Coordinator())
	assert.Equal(t, 1, rt.Layers().Count())
	assert.Nil(t, rt.Registry())
	assert.Equal(t, config.BackendLocal, rt.Config().Transport.Backend)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
	assert.True(t, rt.World().Left())
	assert.ErrorIs(t, rt.Start(context.Background()), ErrClosed)

	t.Log("✅ Runtime 生命周期测试通过")
}

func TestRuntime_InvalidOptions(t *testing.T) {
	t.Run("unknown preset", func(t *testing.T) {
		_, err := New(WithPreset("desktop"))
		assert.Error(t, err)
	})

	t.Run("unknown transport", func(t *testing.T) {
		_, err := New(WithConfig(testConfig(t)), WithTransport("shm"))
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(WithConfig(nil))
		assert.Error(t, err)
	})

	t.Run("negative layers", func(t *testing.T) {
		_, err := New(WithLayers(-1))
		assert.Error(t, err)
	})

	t.Log("✅ 无效选项测试通过")
}

func TestRuntime_CloseBeforeStart(t *testing.T) {
	rt, err := New(WithConfig(testConfig(t)))
	require.NoError(t, err)

	require.NoError(t, rt.Close())
	assert.ErrorIs(t, rt.Shutdown(context.Background(), false), ErrNotStarted)

	t.Log("✅ 未启动即关闭测试通过")
}

// ============================================================================
//                              Reactor
// ============================================================================

func TestRuntime_DispatchOrder(t *testing.T) {
	rt := startRuntime(t, WithConfig(testConfig(t)))

	r, err := rt.NewReactor(16, "order")
	require.NoError(t, err)
	defer func() { _ = r.Destroy() }()

	var got []int
	listener := func(id int) reactor.ReactionFunc {
		return func([]byte, any) types.ReactionResult {
			got = append(got, id)
			return types.RSOK
		}
	}

	var second *reactor.Reaction
	for i := 1; i <= 3; i++ {
		re, err := r.Attach(rt.Process(), types.ChannelGlobals, listener(i), nil)
		require.NoError(t, err)
		if i == 2 {
			second = re
		}
	}

	msg := make([]byte, 16)
	require.NoError(t, r.Dispatch(rt.Process(), types.ChannelGlobals, msg, true, nil))
	assert.Equal(t, []int{3, 2, 1}, got)

	got = nil
	require.NoError(t, r.Detach(second))
	require.NoError(t, r.Dispatch(rt.Process(), types.ChannelGlobals, msg, true, nil))
	assert.Equal(t, []int{3, 1}, got)

	t.Log("✅ 分发顺序测试通过")
}

// ============================================================================
//                              指标
// ============================================================================

func TestRuntime_Metrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	rt := startRuntime(t, WithConfig(cfg))
	require.NotNil(t, rt.Registry())

	r, err := rt.NewReactor(8, "metrics")
	require.NoError(t, err)
	defer func() { _ = r.Destroy() }()
	require.NoError(t, r.Dispatch(rt.Process(), types.ChannelGlobals, make([]byte, 8), true, nil))

	families, err := rt.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fusion_reactor_dispatched_total"])
	assert.True(t, names["fusion_arena_capacity_bytes"])
	for name := range names {
		assert.True(t, strings.HasPrefix(name, "fusion_"), name)
	}

	t.Log("✅ 指标注册测试通过")
}

// ============================================================================
//                              显示层
// ============================================================================

func TestRuntime_LayerDriver(t *testing.T) {
	drv := &countingDriver{}
	rt := startRuntime(t, WithConfig(testConfig(t)), WithLayerDriver(drv))

	l, err := rt.Layers().At(0)
	require.NoError(t, err)
	assert.Same(t, drv, l.Driver())

	region, err := l.CreateRegion()
	require.NoError(t, err)
	cfg := &types.RegionConfig{Width: 320, Height: 240, BufferMode: types.BufferFrontOnly}
	require.NoError(t, region.SetConfiguration(cfg, types.ConfigAll&^types.ConfigFreeze))
	require.NoError(t, region.Enable())
	require.NoError(t, region.Activate())

	assert.Equal(t, 1, drv.count())
	assert.True(t, region.State().Has(types.RegionRealized))

	t.Log("✅ 显示层驱动注入测试通过")
}

func TestRuntime_WithLayerDriverNil(t *testing.T) {
	_, err := New(WithLayerDriver(nil))
	assert.Error(t, err)

	t.Log("✅ 空驱动选项测试通过")
}

// ============================================================================
//                              关闭
// ============================================================================

func TestRuntime_Shutdown(t *testing.T) {
	rt := startRuntime(t, WithConfig(testConfig(t)))

	l, err := rt.Layers().At(0)
	require.NoError(t, err)
	region, err := l.CreateRegion()
	require.NoError(t, err)
	s, err := layer.NewSurface(rt.Layers().Surfaces(), rt.Process(), layer.SurfaceConfig{Width: 64, Height: 64, Buffers: 2})
	require.NoError(t, err)

	require.NoError(t, region.SetSurface(s))
	require.NoError(t, region.SetSurface(nil))
	require.NoError(t, region.Destroy())
	require.NoError(t, s.Destroy())

	require.NoError(t, rt.Shutdown(context.Background(), false))
	assert.Equal(t, shutdown.PhaseDone, rt.Coordinator().Phase())
	assert.Empty(t, rt.World().Shared().Pools())
	assert.True(t, rt.World().Left())

	t.Log("✅ 正常关闭测试通过")
}

func TestRuntime_ShutdownTimeout(t *testing.T) {
	rt := startRuntime(t, WithConfig(testConfig(t)))

	l, err := rt.Layers().At(0)
	require.NoError(t, err)
	_, err = l.CreateRegion()
	require.NoError(t, err)

	err = rt.Shutdown(context.Background(), false)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Empty(t, rt.World().Shared().Pools())

	t.Log("✅ 排空超时关闭测试通过")
}

func TestRuntime_CloseRunsMasterShutdown(t *testing.T) {
	rt := startRuntime(t, WithConfig(testConfig(t)))
	shared := rt.World().Shared()
	require.NotEmpty(t, shared.Pools())

	require.NoError(t, rt.Close())
	assert.True(t, rt.Coordinator().IsCompleted(shutdown.PhaseDone))
	assert.Empty(t, shared.Pools())

	t.Log("✅ Master 关闭流程测试通过")
}
