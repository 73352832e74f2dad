package types

import "fmt"

// ============================================================================
//                              FusionID - 进程身份
// ============================================================================

// FusionID 进程在 World 中的身份
type FusionID uint64

const (
	// FusionIDNone 无效身份
	FusionIDNone FusionID = 0
	// FusionIDMaster Master 进程身份
	FusionIDMaster FusionID = 1
)

// IsMaster 是否为 Master 进程
func (id FusionID) IsMaster() bool {
	return id == FusionIDMaster
}

// String 返回十六进制表示（与套接字地址一致）
func (id FusionID) String() string {
	return fmt.Sprintf("%x", uint64(id))
}

// ============================================================================
//                              对象/Reactor/Pool ID
// ============================================================================

// ObjectID 对象 ID，在所属 Pool 内唯一
type ObjectID uint32

// String 返回字符串表示
func (id ObjectID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// ReactorID Reactor ID，在 World 内唯一
type ReactorID uint32

// String 返回字符串表示
func (id ReactorID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// PoolID Pool ID，在 World 内唯一
type PoolID uint32

// Channel 消息通道
//
// 通道 0 保留给全局反应（Global Reaction）。
type Channel int32

// ChannelGlobals 全局反应所在通道
const ChannelGlobals Channel = 0

// RefToken 跨进程引用令牌
//
// 用于保证分发缓冲存活到最慢的接收方处理完成。
type RefToken uint32

// RefNone 无令牌
const RefNone RefToken = 0
