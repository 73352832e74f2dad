package reactor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/local"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/privileged"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

func newShared(t *testing.T) *world.Shared {
	t.Helper()
	cfg := config.DefaultWorldConfig()
	cfg.ArenaSize = 1 << 20
	cfg.SocketDir = t.TempDir()
	return world.NewShared(cfg)
}

func enter(t *testing.T, shared *world.Shared) *world.World {
	t.Helper()
	w, err := world.Enter(shared)
	require.NoError(t, err)
	return w
}

func newProcess(t *testing.T, w *world.World, tr pkgif.Transport) *Process {
	t.Helper()
	p := NewProcess(w, tr, config.DefaultReactorConfig(), config.DefaultTransportConfig().MaxMessageSize)
	require.NoError(t, p.Start())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newLocalProcess(t *testing.T) *Process {
	t.Helper()
	w := enter(t, newShared(t))
	return newProcess(t, w, local.New(w))
}

// recorder 记录反应顺序
type recorder struct {
	mu  sync.Mutex
	ids []int
}

func (r *recorder) reaction(id int) ReactionFunc {
	return func(msg []byte, ctx any) types.ReactionResult {
		r.mu.Lock()
		r.ids = append(r.ids, id)
		r.mu.Unlock()
		return types.RSOK
	}
}

func (r *recorder) take() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.ids
	r.ids = nil
	return ids
}

// recordingTransport 记录远端订阅调用的传输
type recordingTransport struct {
	mu       sync.Mutex
	attaches map[types.Channel]int
	detaches map[types.Channel]int
	sent     int
	caps     pkgif.TransportCapabilities
	sendErr  error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		attaches: make(map[types.Channel]int),
		detaches: make(map[types.Channel]int),
		caps:     pkgif.TransportCapabilities{Remote: true, SwappableLock: true, Naming: true, DispatchCallback: true},
	}
}

func (rt *recordingTransport) Name() string { return "recording" }

func (rt *recordingTransport) Start(pkgif.MessageHandler) error { return nil }

func (rt *recordingTransport) Close() error { return nil }

func (rt *recordingTransport) DestroyReactor(types.ReactorID) error { return nil }

func (rt *recordingTransport) Capabilities() pkgif.TransportCapabilities { return rt.caps }

func (rt *recordingTransport) AttachRemote(_ types.ReactorID, ch types.Channel) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.attaches[ch]++
	return nil
}

func (rt *recordingTransport) DetachRemote(_ types.ReactorID, ch types.Channel) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.detaches[ch]++
	return nil
}

func (rt *recordingTransport) Send(*pkgif.Envelope, bool) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.sent++
	return rt.sendErr
}

// liveLinks 统计 Node 中未撤销的 link
func liveLinks(p *Process, id types.ReactorID) int {
	n := p.lockNode(id, false, false)
	if n == nil {
		return 0
	}
	defer n.unlock(false)

	count := 0
	for _, l := range n.links {
		if l.reaction.Load() != nil {
			count++
		}
	}
	return count
}

// ============================================================================
// Attach / Detach / Dispatch
// ============================================================================

func TestDispatch_ReverseAttachOrder(t *testing.T) {
	p := newLocalProcess(t)
	r, err := New(p, 16, "order")
	require.NoError(t, err)

	rec := &recorder{}
	for _, id := range []int{1, 2, 3} {
		_, err := r.Attach(p, 1, rec.reaction(id), nil)
		require.NoError(t, err)
	}

	require.NoError(t, r.Dispatch(p, 1, []byte("x"), true, nil))
	assert.Equal(t, []int{3, 2, 1}, rec.take())

	t.Log("✅ 逆序分发测试通过")
}

func TestDispatch_SixteenByteScenario(t *testing.T) {
	p := newLocalProcess(t)
	r, err := New(p, 16, "scenario")
	require.NoError(t, err)

	rec := &recorder{}
	reactions := make(map[int]*Reaction)
	for _, id := range []int{1, 2, 3} {
		re, err := r.Attach(p, types.ChannelGlobals, rec.reaction(id), nil)
		require.NoError(t, err)
		reactions[id] = re
	}

	msg := make([]byte, 16)
	require.NoError(t, r.Dispatch(p, types.ChannelGlobals, msg, true, nil))
	assert.Equal(t, []int{3, 2, 1}, rec.take())

	require.NoError(t, r.Detach(reactions[2]))
	require.NoError(t, r.Dispatch(p, types.ChannelGlobals, msg, true, nil))
	assert.Equal(t, []int{3, 1}, rec.take())

	t.Log("✅ 16 字节消息场景测试通过")
}

func TestDetach(t *testing.T) {
	t.Run("撤销后不再收到消息", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		rec := &recorder{}
		re, err := r.Attach(p, 2, rec.reaction(1), nil)
		require.NoError(t, err)
		require.NoError(t, r.Detach(re))

		require.NoError(t, r.Dispatch(p, 2, []byte{1}, true, nil))
		assert.Empty(t, rec.take())
		assert.Equal(t, 0, p.NodeCount())
	})

	t.Run("重复撤销不报错", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		re, err := r.Attach(p, 2, (&recorder{}).reaction(1), nil)
		require.NoError(t, err)
		require.NoError(t, r.Detach(re))
		assert.NoError(t, r.Detach(re))
	})

	t.Run("撤销已被分发移除的监听", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		re, err := r.Attach(p, 2, func([]byte, any) types.ReactionResult { return types.RSRemove }, nil)
		require.NoError(t, err)
		require.NoError(t, r.Dispatch(p, 2, nil, true, nil))
		assert.NoError(t, r.Detach(re))
	})

	t.Log("✅ 撤销监听测试通过")
}

func TestDispatch_ReactionResults(t *testing.T) {
	t.Run("RSRemove 之后不再调用", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		calls := 0
		_, err := r.Attach(p, 1, func([]byte, any) types.ReactionResult {
			calls++
			return types.RSRemove
		}, nil)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.NoError(t, r.Dispatch(p, 1, nil, true, nil))
		}
		assert.Equal(t, 1, calls)
		assert.Equal(t, 0, liveLinks(p, r.ID()))
		assert.Equal(t, uint64(1), p.Stats().Snapshot().Removed)
	})

	t.Run("RSDrop 截断本条消息", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		rec := &recorder{}
		_, _ = r.Attach(p, 1, rec.reaction(1), nil)
		_, _ = r.Attach(p, 1, func([]byte, any) types.ReactionResult {
			rec.reaction(2)(nil, nil)
			return types.RSDrop
		}, nil)

		require.NoError(t, r.Dispatch(p, 1, nil, true, nil))
		assert.Equal(t, []int{2}, rec.take())
		require.NoError(t, r.Dispatch(p, 1, nil, true, nil))
		assert.Equal(t, []int{2}, rec.take())
	})

	t.Log("✅ 反应结果测试通过")
}

func TestDispatch_ChannelsAreIsolated(t *testing.T) {
	p := newLocalProcess(t)
	r, _ := New(p, 8, "")

	rec := &recorder{}
	_, _ = r.Attach(p, 1, rec.reaction(1), nil)
	_, _ = r.Attach(p, 2, rec.reaction(2), nil)

	require.NoError(t, r.Dispatch(p, 2, nil, true, nil))
	assert.Equal(t, []int{2}, rec.take())
}

func TestDispatch_IndirectSelfThroughTransport(t *testing.T) {
	p := newLocalProcess(t)
	r, _ := New(p, 8, "")
	r.SetDirect(false)

	rec := &recorder{}
	_, _ = r.Attach(p, 1, rec.reaction(1), nil)

	require.NoError(t, r.Dispatch(p, 1, nil, true, nil))
	assert.Equal(t, []int{1}, rec.take())

	require.NoError(t, r.Dispatch(p, 1, nil, false, nil))
	assert.Empty(t, rec.take())
}

func TestAttach_RemoteRegisteredOncePerChannel(t *testing.T) {
	w := enter(t, newShared(t))
	rt := newRecordingTransport()
	p := newProcess(t, w, rt)
	r, _ := New(p, 8, "")

	a, _ := r.Attach(p, 1, (&recorder{}).reaction(1), nil)
	b, _ := r.Attach(p, 1, (&recorder{}).reaction(2), nil)
	_, _ = r.Attach(p, 2, (&recorder{}).reaction(3), nil)

	assert.Equal(t, 1, rt.attaches[1])
	assert.Equal(t, 1, rt.attaches[2])

	require.NoError(t, r.Detach(a))
	assert.Equal(t, 0, rt.detaches[1])
	require.NoError(t, r.Detach(b))
	assert.Equal(t, 1, rt.detaches[1])

	t.Log("✅ 远端订阅合并测试通过")
}

func TestDispatch_TransportFailure(t *testing.T) {
	w := enter(t, newShared(t))
	rt := newRecordingTransport()
	rt.sendErr = types.ErrTransport
	p := newProcess(t, w, rt)
	r, _ := New(p, 8, "")

	err := r.Dispatch(p, 1, nil, false, nil)
	assert.True(t, errors.Is(err, types.ErrTransport))
	assert.Equal(t, uint64(1), p.Stats().Snapshot().Failed)
}

// ============================================================================
// 错误路径
// ============================================================================

func TestReactor_Errors(t *testing.T) {
	t.Run("销毁后的操作", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 8, "")

		require.NoError(t, r.Destroy())
		require.NoError(t, r.Destroy())
		assert.True(t, r.Destroyed())

		_, err := r.Attach(p, 1, (&recorder{}).reaction(1), nil)
		assert.ErrorIs(t, err, types.ErrDestroyed)
		assert.ErrorIs(t, r.Dispatch(p, 1, nil, true, nil), types.ErrDestroyed)
		_, err = r.AttachGlobal(0, nil)
		assert.ErrorIs(t, err, types.ErrDestroyed)
	})

	t.Run("消息超长", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 4, "")
		err := r.Dispatch(p, 1, make([]byte, 5), true, nil)
		assert.ErrorIs(t, err, types.ErrUnsupported)
	})

	t.Run("非法消息大小", func(t *testing.T) {
		p := newLocalProcess(t)
		_, err := New(p, 0, "")
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("本地后端不支持的设置", func(t *testing.T) {
		p := newLocalProcess(t)
		r, _ := New(p, 4, "")
		assert.ErrorIs(t, r.SetDispatchLock(&sync.Mutex{}), types.ErrUnsupported)
		assert.ErrorIs(t, r.SetName("x"), types.ErrUnsupported)
		assert.ErrorIs(t, r.SetDispatchCallback(func() {}), types.ErrUnsupported)
	})

	t.Run("共享内存耗尽", func(t *testing.T) {
		cfg := config.DefaultWorldConfig()
		cfg.ArenaSize = 8
		cfg.SocketDir = t.TempDir()
		w := enter(t, world.NewShared(cfg))
		p := newProcess(t, w, local.New(w))

		_, err := New(p, 16, "")
		assert.ErrorIs(t, err, types.ErrOutOfSharedMemory)
	})

	t.Log("✅ 错误路径测试通过")
}

func TestReactor_DestroyDropsNodes(t *testing.T) {
	shared := newShared(t)
	w := enter(t, shared)
	rt := newRecordingTransport()
	p := newProcess(t, w, rt)

	r1, err := New(p, 8, "")
	require.NoError(t, err)
	r2, err := New(p, 8, "")
	require.NoError(t, err)

	rec := &recorder{}
	re1, err := r1.Attach(p, 1, rec.reaction(1), nil)
	require.NoError(t, err)
	_, err = r1.Attach(p, 2, rec.reaction(2), nil)
	require.NoError(t, err)
	_, err = r2.Attach(p, 1, rec.reaction(3), nil)
	require.NoError(t, err)
	require.Equal(t, 2, p.NodeCount())
	require.Equal(t, 2, shared.LiveReactors())

	require.NoError(t, r1.Destroy())
	assert.Equal(t, 1, p.NodeCount(), "销毁后立即丢弃 Node")
	assert.Equal(t, 0, liveLinks(p, r1.ID()))
	assert.Equal(t, 1, shared.LiveReactors())
	assert.True(t, shared.ReactorRetired(r1.ID()))

	// 销毁后撤销旧句柄不报错，也不再撤销远端订阅
	require.NoError(t, r1.Detach(re1))
	rt.mu.Lock()
	assert.Zero(t, rt.detaches[1])
	rt.mu.Unlock()

	assert.Equal(t, 1, p.deliver(r2.ID(), 1, nil))
	assert.Equal(t, []int{3}, rec.take())

	t.Log("✅ 销毁 Reactor 丢弃 Node 测试通过")
}

// ============================================================================
// 跨进程
// ============================================================================

func TestPrivileged_CrossProcessDelivery(t *testing.T) {
	shared := newShared(t)
	w1 := enter(t, shared)
	w2 := enter(t, shared)
	p1 := newProcess(t, w1, privileged.New(w1))
	p2 := newProcess(t, w2, privileged.New(w2))

	r, err := New(p1, 16, "surface")
	require.NoError(t, err)

	got := make(chan []byte, 4)
	_, err = r.Attach(p2, 3, func(msg []byte, _ any) types.ReactionResult {
		got <- append([]byte(nil), msg...)
		return types.RSOK
	}, nil)
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(p1, 3, []byte("hello"), false, nil))

	select {
	case msg := <-got:
		assert.Equal(t, []byte("hello"), msg)
	case <-time.After(2 * time.Second):
		t.Fatal("跨进程消息未送达")
	}

	t.Log("✅ 仲裁者跨进程分发测试通过")
}

func TestDispatchCallback_RunsOnceAfterAllRecipients(t *testing.T) {
	shared := newShared(t)
	w1 := enter(t, shared)
	w2 := enter(t, shared)
	w3 := enter(t, shared)
	p1 := newProcess(t, w1, privileged.New(w1))
	p2 := newProcess(t, w2, privileged.New(w2))
	p3 := newProcess(t, w3, privileged.New(w3))

	r, err := New(p1, 8, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	handler := func([]byte, any) types.ReactionResult {
		wg.Done()
		return types.RSOK
	}
	_, _ = r.Attach(p2, 1, handler, nil)
	_, _ = r.Attach(p3, 1, handler, nil)

	done := make(chan struct{}, 2)
	require.NoError(t, r.SetDispatchCallback(func() { done <- struct{}{} }))
	require.NoError(t, r.Dispatch(p1, 1, []byte{7}, false, nil))

	wg.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("分发回调未执行")
	}
	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 0, shared.Refs().Len())

	t.Log("✅ 分发回调测试通过")
}

func TestProcess_LeaveMessage(t *testing.T) {
	shared := newShared(t)
	w1 := enter(t, shared)
	w2 := enter(t, shared)
	p1 := newProcess(t, w1, privileged.New(w1))
	_ = newProcess(t, w2, privileged.New(w2))

	left := make(chan types.FusionID, 1)
	p1.SetLeaveCallback(func(id types.FusionID) { left <- id })

	require.NoError(t, w2.Leave())

	select {
	case id := <-left:
		assert.Equal(t, w2.ID(), id)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到离开通知")
	}
}
