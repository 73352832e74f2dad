package privileged

import (
	"sort"
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// arbiterKey Arbiter 在共享段扩展槽中的键
const arbiterKey = "transport/privileged.arbiter"

// ============================================================================
// inbox 进程收件箱
// ============================================================================

// inbox 每个进程的 FIFO 收件箱
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

func newInbox() *inbox {
	ib := &inbox{q: queue.New()}
	ib.cond = sync.NewCond(&ib.mu)
	return ib
}

func (ib *inbox) push(env *pkgif.Envelope) bool {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	if ib.closed {
		return false
	}
	ib.q.Add(env)
	ib.cond.Signal()
	return true
}

// pop 阻塞直到有消息或收件箱关闭
func (ib *inbox) pop() (*pkgif.Envelope, bool) {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	for ib.q.Length() == 0 && !ib.closed {
		ib.cond.Wait()
	}
	if ib.q.Length() == 0 {
		return nil, false
	}
	return ib.q.Remove().(*pkgif.Envelope), true
}

// close 关闭收件箱，返回未投递的消息
func (ib *inbox) close() []*pkgif.Envelope {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	ib.closed = true
	rest := make([]*pkgif.Envelope, 0, ib.q.Length())
	for ib.q.Length() > 0 {
		rest = append(rest, ib.q.Remove().(*pkgif.Envelope))
	}
	ib.cond.Broadcast()
	return rest
}

// ============================================================================
// Arbiter
// ============================================================================

// Arbiter World 级的可信分发仲裁者
//
// 保存全部订阅与各进程收件箱，一次 Dispatch 调用完成全部扇出。
type Arbiter struct {
	shared *world.Shared
	refs   *world.RefTable

	hookOnce sync.Once

	mu      sync.Mutex
	subs    map[types.ReactorID]map[types.Channel]map[types.FusionID]int
	inboxes map[types.FusionID]*inbox
}

// ArbiterOf 返回 World 的 Arbiter，不存在时创建
func ArbiterOf(shared *world.Shared) *Arbiter {
	a := shared.Extension(arbiterKey, func() any {
		return &Arbiter{
			shared:  shared,
			refs:    shared.Refs(),
			subs:    make(map[types.ReactorID]map[types.Channel]map[types.FusionID]int),
			inboxes: make(map[types.FusionID]*inbox),
		}
	}).(*Arbiter)

	a.hookOnce.Do(func() {
		shared.OnLeave(a.processLeft)
	})
	return a
}

// open 为进程创建收件箱
func (a *Arbiter) open(id types.FusionID) *inbox {
	a.mu.Lock()
	defer a.mu.Unlock()

	ib := newInbox()
	a.inboxes[id] = ib
	return ib
}

// Subscribe 登记订阅
func (a *Arbiter) Subscribe(reactor types.ReactorID, ch types.Channel, id types.FusionID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shared.ReactorRetired(reactor) {
		return unix.EINVAL
	}

	chans, ok := a.subs[reactor]
	if !ok {
		chans = make(map[types.Channel]map[types.FusionID]int)
		a.subs[reactor] = chans
	}
	procs, ok := chans[ch]
	if !ok {
		procs = make(map[types.FusionID]int)
		chans[ch] = procs
	}
	procs[id]++
	return nil
}

// Unsubscribe 撤销一次订阅
func (a *Arbiter) Unsubscribe(reactor types.ReactorID, ch types.Channel, id types.FusionID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	procs := a.subs[reactor][ch]
	if procs[id] == 0 {
		return nil
	}
	procs[id]--
	if procs[id] == 0 {
		delete(procs, id)
	}
	if len(procs) == 0 {
		delete(a.subs[reactor], ch)
	}
	if len(a.subs[reactor]) == 0 {
		delete(a.subs, reactor)
	}
	return nil
}

// Subscribers 返回订阅了 (reactor, ch) 的进程
func (a *Arbiter) Subscribers(reactor types.ReactorID, ch types.Channel) []types.FusionID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]types.FusionID, 0, len(a.subs[reactor][ch]))
	for id := range a.subs[reactor][ch] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Dispatch 向全部订阅进程扇出
//
// 引用令牌为每个接收方加一后再入队。Reactor 已销毁时返回 EINVAL。
func (a *Arbiter) Dispatch(env *pkgif.Envelope, self bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shared.ReactorRetired(env.Reactor) {
		return unix.EINVAL
	}

	targets := make([]*inbox, 0, len(a.subs[env.Reactor][env.Channel]))
	for id := range a.subs[env.Reactor][env.Channel] {
		if id == env.Sender && !self {
			continue
		}
		if ib, ok := a.inboxes[id]; ok {
			targets = append(targets, ib)
		}
	}

	for _, ib := range targets {
		if env.Ref != types.RefNone {
			if err := a.refs.Up(env.Ref); err != nil {
				return err
			}
		}
		if !ib.push(env) && env.Ref != types.RefNone {
			_ = a.refs.Down(env.Ref)
		}
	}
	return nil
}

// Destroy 清除 Reactor 的全部订阅，之后的分发返回 EINVAL
func (a *Arbiter) Destroy(reactor types.ReactorID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.subs, reactor)
	a.shared.RetireReactor(reactor)
}

// tracked 返回仍有订阅记录的 Reactor 数
func (a *Arbiter) tracked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// processLeft 进程离开：清除其订阅与收件箱，并通知其他进程
func (a *Arbiter) processLeft(id types.FusionID) {
	a.mu.Lock()
	for reactor, chans := range a.subs {
		for ch, procs := range chans {
			delete(procs, id)
			if len(procs) == 0 {
				delete(chans, ch)
			}
		}
		if len(chans) == 0 {
			delete(a.subs, reactor)
		}
	}

	ib := a.inboxes[id]
	delete(a.inboxes, id)

	others := make([]*inbox, 0, len(a.inboxes))
	for _, other := range a.inboxes {
		others = append(others, other)
	}
	a.mu.Unlock()

	if ib != nil {
		a.release(ib.close())
	}
	for _, other := range others {
		other.push(&pkgif.Envelope{Type: types.MessageLeave, Sender: id})
	}
}

// release 释放未投递消息持有的令牌
func (a *Arbiter) release(envs []*pkgif.Envelope) {
	for _, env := range envs {
		if env.Ref != types.RefNone {
			_ = a.refs.Down(env.Ref)
		}
	}
}

// closeInbox 关闭进程收件箱
func (a *Arbiter) closeInbox(id types.FusionID, ib *inbox) {
	a.mu.Lock()
	if a.inboxes[id] == ib {
		delete(a.inboxes, id)
	}
	a.mu.Unlock()

	a.release(ib.close())
}
