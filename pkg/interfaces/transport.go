// Package interfaces 定义 Fusion 公共接口
//
// 本文件定义分发传输接口。三种实现在进程初始化时选定一次，
// Reactor 只面向本接口编程。
package interfaces

import "github.com/directfb2/DirectFB2-sub002/pkg/types"

// Envelope 进程间 Reactor 消息
type Envelope struct {
	// Type 消息类型（通常为 types.MessageReactor）
	Type types.MessageType

	// Reactor 目标 Reactor
	Reactor types.ReactorID

	// Channel 消息通道
	Channel types.Channel

	// Ref 引用令牌（types.RefNone 表示无）
	//
	// 每个接收方处理完成后必须释放一次。
	Ref types.RefToken

	// Sender 发送进程
	Sender types.FusionID

	// Payload 消息负载
	Payload []byte
}

// MessageHandler 接收方的消息处理器
//
// 由每个进程的 reactor.Process 实现。
type MessageHandler interface {
	// HandleMessage 处理一条到达本进程的消息
	HandleMessage(env *Envelope)
}

// TransportCapabilities 传输能力
type TransportCapabilities struct {
	// Remote 是否存在跨进程扇出
	Remote bool

	// SwappableLock 是否支持替换全局反应锁
	SwappableLock bool

	// Naming 是否支持 Reactor 命名
	Naming bool

	// DispatchCallback 是否支持分发回调（引用令牌）
	DispatchCallback bool
}

// Transport 分发传输接口
//
// 实现必须在内部重试 EINTR，调用方永远不会观察到它。
type Transport interface {
	// Name 返回后端名称
	Name() string

	// Start 开始接收消息
	Start(handler MessageHandler) error

	// Close 停止接收并释放资源
	Close() error

	// AttachRemote 为本进程登记对 (reactor, channel) 的订阅
	//
	// 每个 (reactor, channel, 进程) 只会被调用一次，重复本地订阅由 Node 缓存合并。
	AttachRemote(reactor types.ReactorID, channel types.Channel) error

	// DetachRemote 撤销本进程对 (reactor, channel) 的一次订阅
	DetachRemote(reactor types.ReactorID, channel types.Channel) error

	// Send 向所有订阅了该通道的进程扇出消息
	//
	// self 为 true 时本进程的订阅也会收到消息。
	// 返回:
	//   - error: types.ErrDestroyed 表示 Reactor 已被并发销毁；
	//     types.ErrTransport 表示真实的发送失败
	Send(env *Envelope, self bool) error

	// DestroyReactor 清理 Reactor 的全部订阅记录
	DestroyReactor(reactor types.ReactorID) error

	// Capabilities 返回传输能力
	Capabilities() TransportCapabilities
}
