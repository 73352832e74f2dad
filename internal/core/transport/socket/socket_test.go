package socket

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

func newSharedWorld(t *testing.T) *world.Shared {
	t.Helper()
	cfg := config.DefaultWorldConfig()
	cfg.ArenaSize = 1 << 20
	// 套接字路径长度有限，使用短目录
	dir, err := os.MkdirTemp("", "fs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	cfg.SocketDir = dir
	return world.NewShared(cfg)
}

func testTransportConfig() config.TransportConfig {
	cfg := config.DefaultTransportConfig()
	cfg.Backend = config.BackendSocket
	cfg.ReceiveTimeout = config.Duration(20 * time.Millisecond)
	return cfg
}

func newSocketProcess(t *testing.T, shared *world.Shared) (*reactor.Process, *Transport) {
	t.Helper()
	w, err := world.Enter(shared)
	require.NoError(t, err)

	tr, err := New(w, testTransportConfig())
	require.NoError(t, err)

	p := reactor.NewProcess(w, tr, config.DefaultReactorConfig(), testTransportConfig().MaxMessageSize)
	require.NoError(t, p.Start())
	t.Cleanup(func() { _ = p.Close() })
	return p, tr
}

// ============================================================================
// 信封编码
// ============================================================================

func TestEnvelope_Decode(t *testing.T) {
	env := &pkgif.Envelope{
		Type:    types.MessageReactor,
		Reactor: 0x2a,
		Channel: -3,
		Ref:     17,
		Sender:  2,
		Payload: []byte{1, 2, 3},
	}

	data := encodeEnvelope(env)
	// 未知字段应被跳过
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))

	got, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, got)

	_, err = decodeEnvelope(data[:len(data)-3])
	assert.ErrorIs(t, err, errMalformed)

	t.Log("✅ 信封编解码测试通过")
}

// ============================================================================
// 跨 World 分发
// ============================================================================

func TestSocket_CrossProcessDelivery(t *testing.T) {
	shared := newSharedWorld(t)
	p1, _ := newSocketProcess(t, shared)
	p2, tr2 := newSocketProcess(t, shared)

	_, err := os.Stat(tr2.Path())
	require.NoError(t, err)

	r, err := reactor.New(p1, 16, "surface")
	require.NoError(t, err)

	got := make(chan []byte, 1)
	_, err = r.Attach(p2, 4, func(msg []byte, _ any) types.ReactionResult {
		got <- append([]byte(nil), msg...)
		return types.RSOK
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, tr2.Registry().Refs(r.ID(), 4, p2.ID()))

	require.NoError(t, r.Dispatch(p1, 4, []byte("over the wire"), false, nil))

	select {
	case msg := <-got:
		assert.Equal(t, []byte("over the wire"), msg)
	case <-time.After(2 * time.Second):
		t.Fatal("数据报未送达")
	}

	t.Log("✅ 套接字跨进程分发测试通过")
}

func TestSocket_PrunesDeadListener(t *testing.T) {
	shared := newSharedWorld(t)
	p1, tr1 := newSocketProcess(t, shared)
	p2, _ := newSocketProcess(t, shared)

	r, err := reactor.New(p1, 8, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	_, err = r.Attach(p2, 1, func([]byte, any) types.ReactionResult {
		wg.Done()
		return types.RSOK
	}, nil)
	require.NoError(t, err)

	// 不存在的进程 0x99 没有套接字文件
	const ghost types.FusionID = 0x99
	require.True(t, tr1.Registry().Add(r.ID(), 1, ghost))

	done := make(chan struct{}, 1)
	require.NoError(t, r.SetDispatchCallback(func() { done <- struct{}{} }))
	require.NoError(t, r.Dispatch(p1, 1, []byte{1}, false, nil))

	wg.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("分发回调未执行")
	}

	ids, ok := tr1.Registry().Listeners(r.ID(), 1)
	require.True(t, ok)
	assert.Equal(t, []types.FusionID{p2.ID()}, ids)
	assert.Equal(t, 0, shared.Refs().Len())

	t.Log("✅ 失效监听清理测试通过")
}

func TestSocket_DestroyedReactor(t *testing.T) {
	shared := newSharedWorld(t)
	p1, tr1 := newSocketProcess(t, shared)

	r, err := reactor.New(p1, 8, "")
	require.NoError(t, err)
	require.NoError(t, r.Destroy())

	err = tr1.Send(&pkgif.Envelope{Reactor: r.ID(), Channel: 1, Sender: p1.ID()}, true)
	assert.ErrorIs(t, err, types.ErrDestroyed)
	assert.ErrorIs(t, tr1.AttachRemote(r.ID(), 1), types.ErrDestroyed)
}

func TestSocket_DestroyCyclesStayBounded(t *testing.T) {
	shared := newSharedWorld(t)
	p1, tr1 := newSocketProcess(t, shared)
	p2, _ := newSocketProcess(t, shared)

	const cycles = 1000
	ids := make([]types.ReactorID, 0, cycles)
	for i := 0; i < cycles; i++ {
		r, err := reactor.New(p1, 8, "")
		require.NoError(t, err)
		re, err := r.Attach(p2, 1, func([]byte, any) types.ReactionResult { return types.RSOK }, nil)
		require.NoError(t, err)
		require.NoError(t, r.Detach(re))
		require.NoError(t, r.Destroy())
		ids = append(ids, r.ID())
	}

	assert.Equal(t, 0, tr1.Registry().tracked())
	assert.Equal(t, 0, shared.LiveReactors())

	for _, id := range []types.ReactorID{ids[0], ids[cycles/2], ids[cycles-1]} {
		assert.ErrorIs(t, tr1.AttachRemote(id, 1), types.ErrDestroyed)
		_, ok := tr1.Registry().Listeners(id, 1)
		assert.False(t, ok)
	}

	t.Log("✅ 反复创建销毁记录有界测试通过")
}

func TestSocket_RetriesEINTRAndReportsFailure(t *testing.T) {
	shared := newSharedWorld(t)
	p1, tr1 := newSocketProcess(t, shared)
	_, _ = newSocketProcess(t, shared)

	require.True(t, tr1.Registry().Add(11, 1, 2))

	calls := 0
	tr1.sendto = func(fd int, b []byte, to *unix.SockaddrUnix) error {
		calls++
		if calls == 1 {
			return unix.EINTR
		}
		return unix.EMSGSIZE
	}

	err := tr1.Send(&pkgif.Envelope{Reactor: 11, Channel: 1, Sender: p1.ID()}, false)
	assert.True(t, errors.Is(err, types.ErrTransport))
	assert.Equal(t, 2, calls)

	ids, _ := tr1.Registry().Listeners(11, 1)
	assert.Equal(t, []types.FusionID{2}, ids, "非连接类错误不删除监听记录")
}

func TestSocket_CloseRemovesSocket(t *testing.T) {
	shared := newSharedWorld(t)
	w, err := world.Enter(shared)
	require.NoError(t, err)

	tr, err := New(w, testTransportConfig())
	require.NoError(t, err)
	require.NoError(t, tr.Start(nopHandler{}))
	require.True(t, tr.Registry().Add(1, 1, w.ID()))

	require.NoError(t, tr.Close())
	_, err = os.Stat(tr.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, tr.Registry().Refs(1, 1, w.ID()))
}

type nopHandler struct{}

func (nopHandler) HandleMessage(*pkgif.Envelope) {}
