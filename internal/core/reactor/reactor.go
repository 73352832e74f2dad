package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	"github.com/directfb2/DirectFB2-sub002/internal/util/check"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ReactionFunc 监听函数
//
// msg 在函数返回后不再有效，需要保留时自行复制。
// 函数执行时不持有 Node 锁，可以在同一 Reactor 上再次 Dispatch 或 Attach；
// 不得 Detach 正在执行的监听自身（Detach 会等待它返回），改为返回 RSRemove。
type ReactionFunc func(msg []byte, ctx any) types.ReactionResult

// Reaction 一次 Attach 得到的监听句柄
type Reaction struct {
	proc      *Process
	reactorID types.ReactorID
	channel   types.Channel
	fn        ReactionFunc
	ctx       any
	link      *link
	detached  atomic.Bool
}

// Channel 返回监听的通道
func (re *Reaction) Channel() types.Channel {
	return re.channel
}

// Reactor 返回所属 Reactor 的 ID
func (re *Reaction) Reactor() types.ReactorID {
	return re.reactorID
}

// Reactor 发布/订阅端点
//
// 同一个 Reactor 记录被 World 内所有进程共享，各进程通过自己的 Process
// 上下文挂接监听和分发消息。状态只有 Active -> Destroyed 一次转换。
type Reactor struct {
	id        types.ReactorID
	msgSize   int
	caps      pkgif.TransportCapabilities
	transport pkgif.Transport
	world     *world.World
	record    []byte

	direct    atomic.Bool
	destroyed atomic.Bool

	lock     atomic.Pointer[lockRef]
	globals  []*GlobalReaction // 受分发锁保护
	nglobals atomic.Int32

	mu       sync.Mutex
	name     string
	callback func()
	procs    map[*Process]struct{} // 挂接过监听的进程
}

// New 在进程 p 中创建 Reactor
//
// msgSize 为单条消息的最大负载。
//
// 返回:
//   - error: msgSize 非法返回 types.ErrInvalidArgument；
//     共享内存耗尽返回 types.ErrOutOfSharedMemory
func New(p *Process, msgSize int, name string) (*Reactor, error) {
	if msgSize < 1 || msgSize > p.cfg.MaxMessageSize {
		return nil, fmt.Errorf("reactor message size %d (max %d): %w", msgSize, p.cfg.MaxMessageSize, types.ErrInvalidArgument)
	}

	record, err := p.world.AllocateShared(msgSize)
	if err != nil {
		return nil, fmt.Errorf("allocate reactor: %w", err)
	}

	r := &Reactor{
		id:        p.world.Shared().NewReactorID(),
		msgSize:   msgSize,
		caps:      p.transport.Capabilities(),
		transport: p.transport,
		world:     p.world,
		record:    record,
		name:      name,
		procs:     make(map[*Process]struct{}),
	}
	r.direct.Store(p.cfg.Direct)
	r.lock.Store(&lockRef{l: &sync.Mutex{}})

	logger.Debug("创建 Reactor", "reactor", r.id, "name", name, "msg_size", msgSize)
	return r, nil
}

// ID 返回 Reactor ID
func (r *Reactor) ID() types.ReactorID {
	return r.id
}

// MessageSize 返回消息大小上限
func (r *Reactor) MessageSize() int {
	return r.msgSize
}

// Name 返回名称
func (r *Reactor) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Destroyed 是否已销毁
func (r *Reactor) Destroyed() bool {
	return r.destroyed.Load()
}

// Direct 是否启用直接本地分发
func (r *Reactor) Direct() bool {
	return r.direct.Load()
}

// ============================================================================
// 监听
// ============================================================================

// Attach 在进程 p 中挂接监听
//
// 新监听插入 Node 链表头部，同一通道上后挂接的先收到消息。
// 每个 (Reactor, 通道, 进程) 只向传输层登记一次远端订阅。
func (r *Reactor) Attach(p *Process, ch types.Channel, fn ReactionFunc, ctx any) (*Reaction, error) {
	if fn == nil {
		return nil, fmt.Errorf("attach to %s: %w", r.id, types.ErrInvalidArgument)
	}
	if r.destroyed.Load() {
		return nil, fmt.Errorf("attach to %s: %w", r.id, types.ErrDestroyed)
	}

	n := p.lockNode(r.id, true, true)
	defer n.mu.Unlock()

	l := newLink(r.id, ch)
	re := &Reaction{
		proc:      p,
		reactorID: r.id,
		channel:   ch,
		fn:        fn,
		ctx:       ctx,
		link:      l,
	}
	l.reaction.Store(re)
	n.prepend(l)

	if n.addLive(ch) {
		if err := p.transport.AttachRemote(r.id, ch); err != nil {
			l.tombstone()
			n.remove(l)
			n.dropLive(ch)
			p.releaseNode(n)
			return nil, fmt.Errorf("attach to %s channel %d: %w", r.id, ch, err)
		}
	}

	r.mu.Lock()
	if r.procs != nil {
		r.procs[p] = struct{}{}
	}
	r.mu.Unlock()
	return re, nil
}

// Detach 撤销监听
//
// 重复撤销只记录日志，不报错。
func (r *Reactor) Detach(re *Reaction) error {
	if re == nil {
		return fmt.Errorf("detach from %s: %w", r.id, types.ErrInvalidArgument)
	}
	check.Assert(re.reactorID == r.id, assertID, "reaction belongs to another reactor",
		"reactor", r.id, "reaction_reactor", re.reactorID)

	if !re.detached.CompareAndSwap(false, true) {
		logger.Debug("监听已撤销，忽略", "reactor", r.id, "channel", re.channel)
		return nil
	}

	p := re.proc
	n := p.lockNode(r.id, false, true)
	if n == nil {
		re.link.wait()
		logger.Debug("监听已由分发移除", "reactor", r.id, "channel", re.channel)
		return nil
	}

	cur := re.link.reaction.Load()
	if cur == nil {
		n.remove(re.link)
		p.releaseNode(n)
		n.mu.Unlock()
		re.link.wait()
		logger.Debug("监听已由分发移除", "reactor", r.id, "channel", re.channel)
		return nil
	}
	check.Assert(cur == re && n.contains(re.link), assertID, "link does not match reaction",
		"reactor", r.id, "channel", re.channel)

	re.link.tombstone()
	n.remove(re.link)

	var err error
	if n.dropLive(re.channel) {
		err = p.transport.DetachRemote(r.id, re.channel)
	}
	p.releaseNode(n)
	n.mu.Unlock()

	// 锁外等待：执行中的监听可能正在同一 Reactor 上再次分发
	re.link.wait()

	if err != nil {
		return fmt.Errorf("detach from %s channel %d: %w", r.id, re.channel, err)
	}
	return nil
}

// ============================================================================
// 分发
// ============================================================================

// Dispatch 从进程 p 分发消息
//
// 顺序：通道 0 上的全局反应；self 且启用直接分发时先投递本进程监听；
// 最后交给传输层扇出到其他进程（self 仍为 true 时包括本进程）。
// globals 为调用方的全局反应表，第一个 nil 标记表的边界。
func (r *Reactor) Dispatch(p *Process, ch types.Channel, msg []byte, self bool, globals []GlobalFunc) error {
	if r.destroyed.Load() {
		return fmt.Errorf("dispatch on %s: %w", r.id, types.ErrDestroyed)
	}
	if len(msg) > r.msgSize || len(msg) > p.maxMessage {
		return fmt.Errorf("dispatch %d bytes on %s (max %d): %w", len(msg), r.id, r.msgSize, types.ErrUnsupported)
	}

	if ch == types.ChannelGlobals && len(globals) > 0 && r.nglobals.Load() > 0 {
		r.processGlobals(msg, globals)
	}

	p.stats.recordDispatch(len(msg))

	if self && r.direct.Load() {
		p.deliver(r.id, ch, msg)
		self = false
	}

	payload := make([]byte, len(msg))
	copy(payload, msg)

	env := &pkgif.Envelope{
		Type:    types.MessageReactor,
		Reactor: r.id,
		Channel: ch,
		Sender:  p.ID(),
		Payload: payload,
	}

	if cb := r.dispatchCallback(); cb != nil {
		refs := p.world.Shared().Refs()
		env.Ref = refs.Create(cb)
		defer func() {
			if err := refs.Down(env.Ref); err != nil {
				hotLog.Warn("释放分发令牌失败", "reactor", r.id, "error", err)
			}
		}()
	}

	if err := p.transport.Send(env, self); err != nil {
		p.stats.failed.Add(1)
		return fmt.Errorf("dispatch on %s channel %d: %w", r.id, ch, err)
	}
	return nil
}

// ============================================================================
// 设置
// ============================================================================

// SetDirect 设置是否直接投递本进程监听
func (r *Reactor) SetDirect(direct bool) {
	r.direct.Store(direct)
}

// SetDispatchLock 替换全局反应锁
//
// 先获取旧锁，安装新锁后再释放旧锁，正在等待旧锁的分发会改去获取新锁。
func (r *Reactor) SetDispatchLock(l sync.Locker) error {
	if l == nil {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrInvalidArgument)
	}
	if !r.caps.SwappableLock {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrUnsupported)
	}
	if r.destroyed.Load() {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrDestroyed)
	}

	old := r.acquire()
	r.lock.Store(&lockRef{l: l})
	old.l.Unlock()
	return nil
}

// SetDispatchLockOnly 安装全局反应锁，不获取旧锁
//
// 用于尚无分发发生的初始化阶段。
func (r *Reactor) SetDispatchLockOnly(l sync.Locker) error {
	if l == nil {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrInvalidArgument)
	}
	if !r.caps.SwappableLock {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrUnsupported)
	}
	if r.destroyed.Load() {
		return fmt.Errorf("set lock on %s: %w", r.id, types.ErrDestroyed)
	}

	r.lock.Store(&lockRef{l: l})
	return nil
}

// SetDispatchCallback 设置分发完成回调
//
// 每次分发创建引用令牌，所有接收方与分发方都释放后回调执行一次。
// fn 为 nil 时取消回调。
func (r *Reactor) SetDispatchCallback(fn func()) error {
	if !r.caps.DispatchCallback {
		return fmt.Errorf("set dispatch callback on %s: %w", r.id, types.ErrUnsupported)
	}
	if r.destroyed.Load() {
		return fmt.Errorf("set dispatch callback on %s: %w", r.id, types.ErrDestroyed)
	}

	r.mu.Lock()
	r.callback = fn
	r.mu.Unlock()
	return nil
}

func (r *Reactor) dispatchCallback() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callback
}

// SetName 设置名称
func (r *Reactor) SetName(name string) error {
	if !r.caps.Naming {
		return fmt.Errorf("set name on %s: %w", r.id, types.ErrUnsupported)
	}

	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
	return nil
}

// Destroy 销毁 Reactor
//
// 重复调用无副作用。之后的 Attach/Dispatch 返回 types.ErrDestroyed。
// 挂接过监听的进程立即丢弃对应 Node，尚未 Detach 的监听不再被调用。
func (r *Reactor) Destroy() error {
	if !r.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	ref := r.acquire()
	for _, g := range r.globals {
		g.attached.Store(false)
	}
	r.globals = nil
	r.nglobals.Store(0)
	ref.l.Unlock()

	r.mu.Lock()
	r.callback = nil
	procs := r.procs
	r.procs = nil
	r.mu.Unlock()

	dropped := 0
	for p := range procs {
		dropped += p.dropNode(r.id)
	}

	err := r.transport.DestroyReactor(r.id)
	r.world.Shared().RetireReactor(r.id)
	r.world.FreeShared(r.record)
	r.record = nil

	logger.Debug("销毁 Reactor", "reactor", r.id, "dropped", dropped)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", r.id, err)
	}
	return nil
}
