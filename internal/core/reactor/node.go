package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ============================================================================
// link / node
// ============================================================================

// link 节点中的一条监听记录
//
// reaction 为 nil 表示墓碑：监听已撤销，等待下一个写锁持有者摘除。
// inflight 为正在执行该监听的分发数，撤销方等它归零后才返回。
type link struct {
	reactorID types.ReactorID
	channel   types.Channel
	reaction  atomic.Pointer[Reaction]

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

func newLink(id types.ReactorID, ch types.Channel) *link {
	l := &link{reactorID: id, channel: ch}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// tombstone 清除 reaction 引用，返回清除前的值
func (l *link) tombstone() *Reaction {
	return l.reaction.Swap(nil)
}

// enter 登记一次执行并返回当前监听；已是墓碑时返回 nil
//
// 先登记再读取 reaction，撤销方在置墓碑之后的 wait 一定能看到这次登记。
func (l *link) enter() *Reaction {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	re := l.reaction.Load()
	if re == nil {
		l.leave()
	}
	return re
}

// leave 结束一次执行
func (l *link) leave() {
	l.mu.Lock()
	l.inflight--
	if l.inflight == 0 {
		l.idle.Broadcast()
	}
	l.mu.Unlock()
}

// wait 等待正在执行的分发全部结束
func (l *link) wait() {
	l.mu.Lock()
	for l.inflight > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}

// node 进程内某个 Reactor 的监听缓存
//
// links 只在写锁下增删；读锁持有者只能把 link 置为墓碑。
// 分发在读锁下复制匹配的 link 后即释放锁，监听函数在锁外执行。
type node struct {
	reactorID types.ReactorID

	mu    sync.RWMutex
	links []*link // 最近加入的在前

	// live 每个通道上未撤销的监听数，决定远端订阅的登记与撤销
	liveMu sync.Mutex
	live   map[types.Channel]int

	// pending 已在进程表中找到、尚未拿到节点锁的调用者数（受进程表锁保护）
	pending int
}

func newNode(id types.ReactorID) *node {
	return &node{
		reactorID: id,
		live:      make(map[types.Channel]int),
	}
}

func (n *node) lock(write bool) {
	if write {
		n.mu.Lock()
	} else {
		n.mu.RLock()
	}
}

func (n *node) unlock(write bool) {
	if write {
		n.mu.Unlock()
	} else {
		n.mu.RUnlock()
	}
}

// purge 摘除墓碑（需持有写锁）
func (n *node) purge() int {
	kept := n.links[:0]
	for _, l := range n.links {
		if l.reaction.Load() != nil {
			kept = append(kept, l)
		}
	}
	removed := len(n.links) - len(kept)
	for i := len(kept); i < len(n.links); i++ {
		n.links[i] = nil
	}
	n.links = kept
	return removed
}

// prepend 插入到链表头部（需持有写锁）
func (n *node) prepend(l *link) {
	n.links = append(n.links, nil)
	copy(n.links[1:], n.links)
	n.links[0] = l
}

// remove 摘除指定 link（需持有写锁）
func (n *node) remove(l *link) bool {
	for i, cur := range n.links {
		if cur == l {
			copy(n.links[i:], n.links[i+1:])
			n.links[len(n.links)-1] = nil
			n.links = n.links[:len(n.links)-1]
			return true
		}
	}
	return false
}

// contains 链表中是否存在指定 link
func (n *node) contains(l *link) bool {
	for _, cur := range n.links {
		if cur == l {
			return true
		}
	}
	return false
}

// addLive 通道监听数加一，返回是否为该通道第一个监听
func (n *node) addLive(ch types.Channel) bool {
	n.liveMu.Lock()
	defer n.liveMu.Unlock()

	n.live[ch]++
	return n.live[ch] == 1
}

// dropLive 通道监听数减一，返回是否为该通道最后一个监听
func (n *node) dropLive(ch types.Channel) bool {
	n.liveMu.Lock()
	defer n.liveMu.Unlock()

	n.live[ch]--
	if n.live[ch] <= 0 {
		delete(n.live, ch)
		return true
	}
	return false
}

// liveChannels 返回仍有监听的通道
func (n *node) liveChannels() []types.Channel {
	n.liveMu.Lock()
	defer n.liveMu.Unlock()

	chs := make([]types.Channel, 0, len(n.live))
	for ch := range n.live {
		chs = append(chs, ch)
	}
	return chs
}
