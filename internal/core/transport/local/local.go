// Package local 实现仅本进程的分发传输
//
// 不存在远端扇出：分发只会同步到达本进程的监听。
// 锁替换、命名、分发回调均不支持。
package local

import (
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("transport/local")

// Name 后端名称
const Name = "local"

// Transport 本地传输
type Transport struct {
	world   *world.World
	handler atomic.Pointer[handlerRef]
}

type handlerRef struct {
	h pkgif.MessageHandler
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建本地传输
func New(w *world.World) *Transport {
	return &Transport{world: w}
}

// Name 返回后端名称
func (t *Transport) Name() string {
	return Name
}

// Start 开始接收消息
func (t *Transport) Start(handler pkgif.MessageHandler) error {
	t.handler.Store(&handlerRef{h: handler})
	return nil
}

// Close 停止接收
func (t *Transport) Close() error {
	t.handler.Store(nil)
	return nil
}

// AttachRemote 无远端订阅
func (t *Transport) AttachRemote(types.ReactorID, types.Channel) error {
	return nil
}

// DetachRemote 无远端订阅
func (t *Transport) DetachRemote(types.ReactorID, types.Channel) error {
	return nil
}

// Send self 为 true 时同步投递本进程监听
func (t *Transport) Send(env *pkgif.Envelope, self bool) error {
	if !self {
		return nil
	}

	ref := t.handler.Load()
	if ref == nil {
		logger.Debug("传输未启动，丢弃本地分发", "reactor", env.Reactor)
		return nil
	}

	if env.Ref != types.RefNone {
		if err := t.world.Shared().Refs().Up(env.Ref); err != nil {
			return err
		}
	}
	ref.h.HandleMessage(env)
	return nil
}

// DestroyReactor 无远端记录
func (t *Transport) DestroyReactor(types.ReactorID) error {
	return nil
}

// Capabilities 返回传输能力
func (t *Transport) Capabilities() pkgif.TransportCapabilities {
	return pkgif.TransportCapabilities{}
}
