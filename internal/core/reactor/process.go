package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	"github.com/directfb2/DirectFB2-sub002/internal/util/check"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var (
	logger   = log.Logger("core/reactor")
	hotLog   = log.Throttled("core/reactor", time.Second, 5)
	assertID = "core/reactor"
)

// Process 单个进程的 Reactor 上下文
//
// 持有本进程的监听缓存（Node 表）与选定的分发传输，
// 并作为传输层的消息处理器接收其他进程的分发。
type Process struct {
	world      *world.World
	transport  pkgif.Transport
	cfg        config.ReactorConfig
	maxMessage int

	mu    sync.Mutex
	nodes []*node // 最近使用的在前

	leaveMu sync.Mutex
	onLeave func(types.FusionID)

	stats   *Stats
	started atomic.Bool
	closed  atomic.Bool
}

var _ pkgif.MessageHandler = (*Process)(nil)

// NewProcess 创建进程上下文
//
// maxMessage 为传输层允许的最大负载，超过者在分发时返回 types.ErrUnsupported。
func NewProcess(w *world.World, t pkgif.Transport, cfg config.ReactorConfig, maxMessage int) *Process {
	return &Process{
		world:      w,
		transport:  t,
		cfg:        cfg,
		maxMessage: maxMessage,
		stats:      newStats(),
	}
}

// Start 开始接收其他进程的分发
func (p *Process) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}
	logger.Debug("启动 Reactor 进程上下文", "fusion_id", p.ID(), "transport", p.transport.Name())
	return p.transport.Start(p)
}

// Close 释放全部监听缓存并关闭传输
func (p *Process) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.FreeAll()
	return p.transport.Close()
}

// ID 返回本进程身份
func (p *Process) ID() types.FusionID {
	return p.world.ID()
}

// World 返回本进程的 World 视图
func (p *Process) World() *world.World {
	return p.world
}

// Transport 返回分发传输
func (p *Process) Transport() pkgif.Transport {
	return p.transport
}

// Stats 返回分发统计
func (p *Process) Stats() *Stats {
	return p.stats
}

// SetLeaveCallback 设置其他进程离开时的回调
func (p *Process) SetLeaveCallback(fn func(types.FusionID)) {
	p.leaveMu.Lock()
	p.onLeave = fn
	p.leaveMu.Unlock()
}

// ============================================================================
// Node 表
// ============================================================================

// lockNode 查找（可选创建）Reactor 对应的 Node 并按要求加锁
//
// 进程表锁从不在阻塞等待 Node 锁时持有：找到的 Node 先登记 pending，
// 释放表锁后再加锁。pending 非零的 Node 不会被回收。
// 写锁模式下会摘除墓碑；此时若链表为空且不需要创建，Node 被释放并返回 nil。
func (p *Process) lockNode(id types.ReactorID, create, write bool) *node {
	p.mu.Lock()

	var found *node
	kept := p.nodes[:0]
	for _, n := range p.nodes {
		if n.reactorID == id {
			found = n
			continue
		}
		if n.pending == 0 && n.mu.TryLock() {
			n.purge()
			empty := len(n.links) == 0
			n.mu.Unlock()
			if empty {
				continue
			}
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(p.nodes); i++ {
		p.nodes[i] = nil
	}
	p.nodes = kept

	if found == nil {
		if !create {
			p.mu.Unlock()
			return nil
		}
		n := newNode(id)
		n.lock(write)
		p.nodes = append([]*node{n}, p.nodes...)
		p.mu.Unlock()
		return n
	}

	found.pending++
	p.nodes = append([]*node{found}, p.nodes...)
	p.mu.Unlock()

	found.lock(write)

	p.mu.Lock()
	found.pending--
	p.mu.Unlock()

	if write {
		found.purge()
		if len(found.links) == 0 && !create {
			p.releaseNode(found)
			found.mu.Unlock()
			return nil
		}
	}
	return found
}

// releaseNode 释放空 Node（需持有该 Node 的写锁）
func (p *Process) releaseNode(n *node) {
	if len(n.links) > 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n.pending > 0 {
		return
	}
	for i, cur := range p.nodes {
		if cur == n {
			copy(p.nodes[i:], p.nodes[i+1:])
			p.nodes[len(p.nodes)-1] = nil
			p.nodes = p.nodes[:len(p.nodes)-1]
			return
		}
	}
}

// dropNode 丢弃 Reactor 在本进程的 Node，返回失效的监听数
//
// Reactor 销毁时调用，远端记录由传输层整体清除，不逐个撤销。
func (p *Process) dropNode(id types.ReactorID) int {
	n := p.lockNode(id, false, true)
	if n == nil {
		return 0
	}

	dropped := 0
	for _, l := range n.links {
		if l.tombstone() != nil {
			dropped++
		}
	}
	n.links = nil
	n.live = make(map[types.Channel]int)
	p.releaseNode(n)
	n.mu.Unlock()
	return dropped
}

// NodeCount 返回缓存的 Node 数
func (p *Process) NodeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// FreeAll 释放全部 Node
//
// 进程离开 World 时调用，仍存活的监听同时撤销远端订阅。
func (p *Process) FreeAll() {
	p.mu.Lock()
	nodes := p.nodes
	p.nodes = nil
	p.mu.Unlock()

	for _, n := range nodes {
		n.mu.Lock()
		for _, l := range n.links {
			l.tombstone()
		}
		n.links = nil
		for _, ch := range n.liveChannels() {
			if err := p.transport.DetachRemote(n.reactorID, ch); err != nil {
				logger.Debug("撤销远端订阅失败", "reactor", n.reactorID, "channel", ch, "error", err)
			}
		}
		n.live = make(map[types.Channel]int)
		n.mu.Unlock()
	}

	if len(nodes) > 0 {
		logger.Debug("释放全部监听缓存", "fusion_id", p.ID(), "nodes", len(nodes))
	}
}

// ============================================================================
// 本地分发
// ============================================================================

// HandleMessage 处理传输层投递到本进程的消息
func (p *Process) HandleMessage(env *pkgif.Envelope) {
	switch env.Type {
	case types.MessageReactor:
		p.deliver(env.Reactor, env.Channel, env.Payload)
	case types.MessageLeave:
		p.leaveMu.Lock()
		fn := p.onLeave
		p.leaveMu.Unlock()
		if fn != nil {
			fn(env.Sender)
		}
	default:
		hotLog.Warn("忽略未知消息类型", "type", env.Type, "sender", env.Sender)
	}

	if env.Ref != types.RefNone {
		if err := p.world.Shared().Refs().Down(env.Ref); err != nil {
			hotLog.Warn("释放引用令牌失败", "ref", env.Ref, "error", err)
		}
	}
}

// deliver 把消息交给本进程对应通道的监听
//
// 读锁下复制匹配的 link，释放锁后按顺序执行，监听函数可以重入分发。
// RSRemove 只把 link 置为墓碑并撤销远端订阅，摘除留给下一个写锁持有者。
func (p *Process) deliver(id types.ReactorID, ch types.Channel, msg []byte) int {
	n := p.lockNode(id, false, false)
	if n == nil {
		return 0
	}
	var targets []*link
	for _, l := range n.links {
		if l.channel == ch && l.reaction.Load() != nil {
			targets = append(targets, l)
		}
	}
	n.unlock(false)

	invoked := 0
	for _, l := range targets {
		re := l.enter()
		if re == nil {
			continue
		}

		invoked++
		res := re.fn(msg, re.ctx)
		l.leave()

		switch res {
		case types.RSOK:
		case types.RSRemove:
			p.removeLink(n, l, re)
		case types.RSDrop:
			p.stats.delivered.Add(uint64(invoked))
			return invoked
		default:
			check.Assume(false, assertID, "未知的反应结果", "reactor", id, "result", int(res))
		}
	}

	p.stats.delivered.Add(uint64(invoked))
	return invoked
}

// removeLink 处理 RSRemove：置墓碑并在通道最后一个监听消失时撤销远端订阅
//
// 在读锁下进行，link 仍存活时 Node 不会被释放，写锁持有者也不会同时登记新订阅。
func (p *Process) removeLink(n *node, l *link, re *Reaction) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !l.reaction.CompareAndSwap(re, nil) {
		return
	}
	p.stats.removed.Add(1)
	if n.dropLive(l.channel) {
		if err := p.transport.DetachRemote(l.reactorID, l.channel); err != nil {
			logger.Debug("撤销远端订阅失败", "reactor", l.reactorID, "channel", l.channel, "error", err)
		}
	}
}
