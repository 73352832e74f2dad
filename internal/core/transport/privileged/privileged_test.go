package privileged

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

type collectHandler struct {
	mu   sync.Mutex
	envs []*pkgif.Envelope
	refs *world.RefTable
}

func (h *collectHandler) HandleMessage(env *pkgif.Envelope) {
	h.mu.Lock()
	h.envs = append(h.envs, env)
	h.mu.Unlock()
	if env.Ref != types.RefNone {
		_ = h.refs.Down(env.Ref)
	}
}

func (h *collectHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.envs)
}

func setup(t *testing.T, n int) (*world.Shared, []*Transport, []*collectHandler) {
	t.Helper()

	cfg := config.DefaultWorldConfig()
	cfg.ArenaSize = 1 << 20
	cfg.SocketDir = t.TempDir()
	shared := world.NewShared(cfg)

	trs := make([]*Transport, n)
	hs := make([]*collectHandler, n)
	for i := 0; i < n; i++ {
		w, err := world.Enter(shared)
		require.NoError(t, err)
		trs[i] = New(w)
		hs[i] = &collectHandler{refs: shared.Refs()}
		require.NoError(t, trs[i].Start(hs[i]))
		tr := trs[i]
		t.Cleanup(func() { _ = tr.Close() })
	}
	return shared, trs, hs
}

func TestPrivileged_FanOut(t *testing.T) {
	_, trs, hs := setup(t, 3)

	require.NoError(t, trs[1].AttachRemote(7, 1))
	require.NoError(t, trs[2].AttachRemote(7, 1))
	require.NoError(t, trs[0].AttachRemote(7, 1))

	env := &pkgif.Envelope{Type: types.MessageReactor, Reactor: 7, Channel: 1, Sender: trs[0].world.ID(), Payload: []byte("x")}
	require.NoError(t, trs[0].Send(env, false))

	assert.Eventually(t, func() bool { return hs[1].count() == 1 && hs[2].count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hs[0].count(), "self=false 不投递发送方")

	require.NoError(t, trs[0].Send(env, true))
	assert.Eventually(t, func() bool { return hs[0].count() == 1 }, time.Second, 5*time.Millisecond)

	t.Log("✅ 仲裁者扇出测试通过")
}

func TestPrivileged_SubscriptionRefCount(t *testing.T) {
	_, trs, _ := setup(t, 1)
	a := trs[0].Arbiter()

	require.NoError(t, trs[0].AttachRemote(3, 2))
	require.NoError(t, trs[0].AttachRemote(3, 2))
	require.NoError(t, trs[0].DetachRemote(3, 2))
	assert.Len(t, a.Subscribers(3, 2), 1)
	require.NoError(t, trs[0].DetachRemote(3, 2))
	assert.Empty(t, a.Subscribers(3, 2))
}

func TestPrivileged_DestroyedReactor(t *testing.T) {
	shared, trs, _ := setup(t, 2)
	id := shared.NewReactorID()

	require.NoError(t, trs[1].AttachRemote(id, 1))
	require.NoError(t, trs[0].DestroyReactor(id))

	env := &pkgif.Envelope{Type: types.MessageReactor, Reactor: id, Channel: 1, Sender: trs[0].world.ID()}
	assert.ErrorIs(t, trs[0].Send(env, false), types.ErrDestroyed)
	assert.ErrorIs(t, trs[1].AttachRemote(id, 2), types.ErrDestroyed)

	t.Log("✅ 已销毁 Reactor 映射测试通过")
}

func TestPrivileged_DestroyCyclesStayBounded(t *testing.T) {
	shared, trs, _ := setup(t, 2)
	a := trs[0].Arbiter()

	const cycles = 10000
	var first, last types.ReactorID
	for i := 0; i < cycles; i++ {
		id := shared.NewReactorID()
		if i == 0 {
			first = id
		}
		last = id
		require.NoError(t, trs[1].AttachRemote(id, 1))
		require.NoError(t, trs[1].DetachRemote(id, 1))
		require.NoError(t, trs[0].DestroyReactor(id))
	}

	assert.Equal(t, 0, a.tracked(), "销毁后不保留订阅记录")
	assert.Equal(t, 0, shared.LiveReactors(), "销毁记录不随循环次数增长")

	for _, id := range []types.ReactorID{first, last} {
		env := &pkgif.Envelope{Type: types.MessageReactor, Reactor: id, Channel: 1, Sender: trs[0].world.ID()}
		assert.ErrorIs(t, trs[0].Send(env, false), types.ErrDestroyed)
		assert.ErrorIs(t, trs[1].AttachRemote(id, 1), types.ErrDestroyed)
	}

	live := shared.NewReactorID()
	require.NoError(t, trs[1].AttachRemote(live, 1))
	assert.Equal(t, 1, a.tracked())
	assert.Equal(t, 1, shared.LiveReactors())

	t.Log("✅ 反复创建销毁记录有界测试通过")
}

func TestPrivileged_RetriesEINTR(t *testing.T) {
	_, trs, _ := setup(t, 1)
	tr := trs[0]

	var calls atomic.Int32
	tr.call = func(env *pkgif.Envelope, self bool) error {
		if calls.Add(1) < 3 {
			return unix.EINTR
		}
		return nil
	}

	require.NoError(t, tr.Send(&pkgif.Envelope{Reactor: 1}, false))
	assert.Equal(t, int32(3), calls.Load())

	tr.call = func(*pkgif.Envelope, bool) error { return unix.EIO }
	assert.ErrorIs(t, tr.Send(&pkgif.Envelope{Reactor: 1}, false), types.ErrTransport)
}

func TestPrivileged_RefTokenPerRecipient(t *testing.T) {
	shared, trs, hs := setup(t, 3)

	require.NoError(t, trs[1].AttachRemote(5, 1))
	require.NoError(t, trs[2].AttachRemote(5, 1))

	fired := make(chan struct{}, 1)
	tok := shared.Refs().Create(func() { fired <- struct{}{} })

	env := &pkgif.Envelope{Type: types.MessageReactor, Reactor: 5, Channel: 1, Ref: tok, Sender: trs[0].world.ID()}
	require.NoError(t, trs[0].Send(env, false))
	require.NoError(t, shared.Refs().Down(tok))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("令牌未归零")
	}
	assert.Equal(t, 1, hs[1].count())
	assert.Equal(t, 1, hs[2].count())
}

func TestPrivileged_LeaveDropsSubscriptions(t *testing.T) {
	_, trs, hs := setup(t, 2)
	a := trs[0].Arbiter()

	require.NoError(t, trs[1].AttachRemote(4, 1))
	require.NoError(t, trs[1].world.Leave())

	assert.Empty(t, a.Subscribers(4, 1))
	assert.Eventually(t, func() bool {
		hs[0].mu.Lock()
		defer hs[0].mu.Unlock()
		return len(hs[0].envs) == 1 && hs[0].envs[0].Type == types.MessageLeave
	}, time.Second, 5*time.Millisecond)
}
