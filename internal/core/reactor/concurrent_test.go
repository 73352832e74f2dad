package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// TestConcurrent_AttachDetachPairs 并发挂接/撤销后存活 link 数一致
func TestConcurrent_AttachDetachPairs(t *testing.T) {
	w := enter(t, newShared(t))
	rt := newRecordingTransport()
	p := newProcess(t, w, rt)
	r, err := New(p, 8, "")
	require.NoError(t, err)

	const workers = 16
	const rounds = 100

	var attached, detached atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := types.Channel(i%3 + 1)
			for j := 0; j < rounds; j++ {
				re, err := r.Attach(p, ch, func([]byte, any) types.ReactionResult { return types.RSOK }, nil)
				if !assert.NoError(t, err) {
					return
				}
				attached.Add(1)

				// 奇数轮保留监听
				if j%2 == 0 {
					assert.NoError(t, r.Detach(re))
					detached.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int(attached.Load()-detached.Load()), liveLinks(p, r.ID()))
	for ch := types.Channel(1); ch <= 3; ch++ {
		assert.Equal(t, 1, rt.attaches[ch]-rt.detaches[ch], "channel %d", ch)
	}

	t.Log("✅ 并发挂接/撤销测试通过")
}

// TestConcurrent_DispatchDuringDetach 读锁分发与写锁撤销交错不死锁
func TestConcurrent_DispatchDuringDetach(t *testing.T) {
	p := newLocalProcess(t)
	r, err := New(p, 8, "")
	require.NoError(t, err)

	var delivered atomic.Int64
	fn := func([]byte, any) types.ReactionResult {
		delivered.Add(1)
		return types.RSOK
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = r.Dispatch(p, 1, []byte{1}, true, nil)
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		re, err := r.Attach(p, 1, fn, nil)
		require.NoError(t, err)
		require.NoError(t, r.Detach(re))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 0, liveLinks(p, r.ID()))

	t.Log("✅ 分发与撤销交错测试通过")
}

// TestConcurrent_RemoveAcrossReaders RSRemove 只撤销一次远端订阅
func TestConcurrent_RemoveAcrossReaders(t *testing.T) {
	w := enter(t, newShared(t))
	rt := newRecordingTransport()
	p := newProcess(t, w, rt)
	r, _ := New(p, 8, "")

	for i := 0; i < 10; i++ {
		_, _ = r.Attach(p, 1, func([]byte, any) types.ReactionResult { return types.RSRemove }, nil)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Dispatch(p, 1, nil, true, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, liveLinks(p, r.ID()))
	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, 1, rt.attaches[1])
	assert.Equal(t, 1, rt.detaches[1])
}

// TestConcurrent_ReentrantDispatch 监听内在同一 Reactor 上再次分发，同时有并发 Attach
func TestConcurrent_ReentrantDispatch(t *testing.T) {
	p := newLocalProcess(t)
	r, err := New(p, 8, "")
	require.NoError(t, err)

	var rec recorder
	var depth, calls atomic.Int32
	attaching := make(chan struct{})
	attached := make(chan struct{})

	_, err = r.Attach(p, 1, func([]byte, any) types.ReactionResult {
		calls.Add(1)
		if depth.Add(1) == 1 {
			close(attaching)
			select {
			case <-attached:
			case <-time.After(time.Second):
			}
			assert.NoError(t, r.Dispatch(p, 1, []byte{2}, true, nil))
		}
		depth.Add(-1)
		return types.RSOK
	}, nil)
	require.NoError(t, err)

	go func() {
		<-attaching
		_, err := r.Attach(p, 1, rec.reaction(2), nil)
		assert.NoError(t, err)
		close(attached)
	}()

	done := make(chan error, 1)
	go func() { done <- r.Dispatch(p, 1, []byte{1}, true, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("重入分发阻塞")
	}

	select {
	case <-attached:
	case <-time.After(3 * time.Second):
		t.Fatal("并发 Attach 阻塞")
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []int{2}, rec.take())
	assert.Equal(t, 2, liveLinks(p, r.ID()))

	t.Log("✅ 重入分发测试通过")
}

// TestConcurrent_DetachWaitsForRunningReaction Detach 在执行中的监听返回后才返回
func TestConcurrent_DetachWaitsForRunningReaction(t *testing.T) {
	p := newLocalProcess(t)
	r, err := New(p, 8, "")
	require.NoError(t, err)

	running := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	re, err := r.Attach(p, 1, func([]byte, any) types.ReactionResult {
		close(running)
		<-release
		finished.Store(true)
		return types.RSOK
	}, nil)
	require.NoError(t, err)

	go func() { _ = r.Dispatch(p, 1, nil, true, nil) }()
	<-running

	detached := make(chan struct{})
	go func() {
		assert.NoError(t, r.Detach(re))
		close(detached)
	}()

	select {
	case <-detached:
		t.Fatal("Detach 未等待执行中的监听")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-detached:
	case <-time.After(3 * time.Second):
		t.Fatal("Detach 阻塞")
	}
	assert.True(t, finished.Load())
	assert.Equal(t, 0, liveLinks(p, r.ID()))

	t.Log("✅ Detach 等待执行中监听测试通过")
}
