// Package privileged 实现经可信仲裁者的分发传输
//
// World 内只有一个 Arbiter（保存在共享段扩展槽），它记录所有订阅并为每个
// 进程维护 FIFO 收件箱。一次 Send 调用由 Arbiter 完成全部扇出；每个进程
// 由一个后台 goroutine 按序取出收件箱中的消息交给处理器。
package privileged

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("transport/privileged")

// Name 后端名称
const Name = "privileged"

// Transport 仲裁者传输
type Transport struct {
	world   *world.World
	arbiter *Arbiter

	// call 调用仲裁者分发，可能返回 EINTR
	call func(env *pkgif.Envelope, self bool) error

	mu      sync.Mutex
	inbox   *inbox
	wg      sync.WaitGroup
	started atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建仲裁者传输
func New(w *world.World) *Transport {
	a := ArbiterOf(w.Shared())
	return &Transport{
		world:   w,
		arbiter: a,
		call:    a.Dispatch,
	}
}

// Name 返回后端名称
func (t *Transport) Name() string {
	return Name
}

// Arbiter 返回仲裁者
func (t *Transport) Arbiter() *Arbiter {
	return t.arbiter
}

// Start 打开收件箱并启动投递 goroutine
func (t *Transport) Start(handler pkgif.MessageHandler) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	ib := t.arbiter.open(t.world.ID())
	t.mu.Lock()
	t.inbox = ib
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			env, ok := ib.pop()
			if !ok {
				return
			}
			handler.HandleMessage(env)
		}
	}()

	logger.Debug("收件箱已打开", "fusion_id", t.world.ID())
	return nil
}

// Close 关闭收件箱并等待投递 goroutine 退出
func (t *Transport) Close() error {
	t.mu.Lock()
	ib := t.inbox
	t.inbox = nil
	t.mu.Unlock()

	if ib != nil {
		t.arbiter.closeInbox(t.world.ID(), ib)
	}
	t.wg.Wait()
	return nil
}

// AttachRemote 向仲裁者登记订阅
func (t *Transport) AttachRemote(reactor types.ReactorID, ch types.Channel) error {
	return mapError(t.arbiter.Subscribe(reactor, ch, t.world.ID()))
}

// DetachRemote 向仲裁者撤销订阅
func (t *Transport) DetachRemote(reactor types.ReactorID, ch types.Channel) error {
	return mapError(t.arbiter.Unsubscribe(reactor, ch, t.world.ID()))
}

// Send 由仲裁者扇出，EINTR 透明重试
func (t *Transport) Send(env *pkgif.Envelope, self bool) error {
	for {
		err := t.call(env, self)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return mapError(err)
	}
}

// DestroyReactor 通知仲裁者 Reactor 已销毁
func (t *Transport) DestroyReactor(reactor types.ReactorID) error {
	t.arbiter.Destroy(reactor)
	return nil
}

// Capabilities 返回传输能力
func (t *Transport) Capabilities() pkgif.TransportCapabilities {
	return pkgif.TransportCapabilities{
		Remote:           true,
		SwappableLock:    true,
		Naming:           true,
		DispatchCallback: true,
	}
}

// mapError 把仲裁者错误映射为 Fusion 错误
//
// EINVAL 表示 Reactor 已被并发销毁，不属于传输失败。
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL):
		return types.ErrDestroyed
	default:
		return fmt.Errorf("arbiter: %v: %w", err, types.ErrTransport)
	}
}
