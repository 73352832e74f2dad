package layer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// TestRegion_ConcurrentNotifyAndFlip 通知、翻转与启停并发执行不死锁
func TestRegion_ConcurrentNotifyAndFlip(t *testing.T) {
	env := newEnv(t, Caps{AlphaRamp: true})
	cfg := monoSurface()
	cfg.Palette = true
	r, s := env.realize(t, testConfig(types.BufferBackVideo), cfg)

	const rounds = 200
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, s.PaletteChanged())
			assert.NoError(t, s.SetAlphaRamp([4]uint8{uint8(i), 0, 0, 0xff}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, s.Flip(nil, nil))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, r.FlipUpdate(&types.Region{X2: 9, Y2: 9}, types.FlipNone))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, r.Deactivate())
			assert.NoError(t, r.Activate())
		}
	}()
	wg.Wait()

	_, _, locked := s.Stats()
	assert.Zero(t, locked)

	// 最后一次翻转让区域追上当前配置
	require.NoError(t, r.FlipUpdate(nil, types.FlipNone))
	assert.True(t, r.State().Has(types.RegionRealized))
	assert.Equal(t, []*Region{r}, env.layer.AddedRegions())

	t.Log("✅ 并发通知与翻转测试通过")
}

// TestRegion_FailedRealizeInEventReaction 表面事件中重新实现失败，释放缓冲的通知
// 在同一表面上重入分发，同时有并发 Attach，翻转必须返回
func TestRegion_FailedRealizeInEventReaction(t *testing.T) {
	env := newEnv(t, Caps{})
	r, s := env.realize(t, testConfig(types.BufferBackVideo), monoSurface())

	require.NoError(t, r.Deactivate())
	require.NoError(t, r.Activate())
	require.True(t, r.State().Has(types.RegionFrozen))

	attached := make(chan struct{})
	var once sync.Once
	env.driver.setErr = errors.New("mode rejected")
	env.driver.onSet = func() {
		once.Do(func() {
			go func() {
				defer close(attached)
				_, err := s.Reactor().Attach(env.proc, ChannelEvent, func([]byte, any) types.ReactionResult {
					return types.RSOK
				}, nil)
				assert.NoError(t, err)
			}()
			select {
			case <-attached:
			case <-time.After(100 * time.Millisecond):
			}
		})
	}

	done := make(chan error, 1)
	go func() { done <- s.Flip(nil, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Surface.Flip 未返回")
	}

	select {
	case <-attached:
	case <-time.After(3 * time.Second):
		t.Fatal("并发 Attach 未返回")
	}

	assert.False(t, r.State().Has(types.RegionRealized))
	assert.True(t, r.State().Has(types.RegionFrozen))
	assert.Equal(t, 1, env.driver.count("add"))
	assert.Equal(t, 2, env.driver.count("remove"))
	assert.Empty(t, env.layer.AddedRegions())
	assert.False(t, s.Allocated())

	t.Log("✅ 事件反应中实现失败不死锁测试通过")
}
