package types

// ============================================================================
//                              ReactionResult - 反应结果
// ============================================================================

// ReactionResult 反应函数的返回值
type ReactionResult int

const (
	// RSOK 继续接收消息
	RSOK ReactionResult = iota
	// RSRemove 移除该反应，之后不再接收任何消息
	RSRemove
	// RSDrop 停止向后续本地反应分发本条消息
	RSDrop
)

// String 返回字符串表示
func (r ReactionResult) String() string {
	switch r {
	case RSOK:
		return "ok"
	case RSRemove:
		return "remove"
	case RSDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ObjectState - 对象状态
// ============================================================================

// ObjectState 对象生命周期状态
type ObjectState int

const (
	// ObjectInit 已创建，尚未激活
	ObjectInit ObjectState = iota
	// ObjectActive 已激活，可被观察
	ObjectActive
	// ObjectDeinit 正在销毁
	ObjectDeinit
)

// String 返回字符串表示
func (s ObjectState) String() string {
	switch s {
	case ObjectInit:
		return "init"
	case ObjectActive:
		return "active"
	case ObjectDeinit:
		return "deinit"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              MessageType - 消息类型
// ============================================================================

// MessageType 进程间消息类型
type MessageType uint32

const (
	// MessageSend 普通消息
	MessageSend MessageType = iota
	// MessageEnter 进程进入 World
	MessageEnter
	// MessageLeave 进程离开 World
	MessageLeave
	// MessageCall 调用
	MessageCall
	// MessageCallReturn 调用返回
	MessageCallReturn
	// MessageReactor Reactor 消息
	MessageReactor
)

// String 返回字符串表示
func (t MessageType) String() string {
	switch t {
	case MessageSend:
		return "send"
	case MessageEnter:
		return "enter"
	case MessageLeave:
		return "leave"
	case MessageCall:
		return "call"
	case MessageCallReturn:
		return "call-return"
	case MessageReactor:
		return "reactor"
	default:
		return "unknown"
	}
}
