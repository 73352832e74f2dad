package layer

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ============================================================================
//                              表面通知
// ============================================================================

// NotificationFlags 表面通知标志
type NotificationFlags uint32

const (
	// NotifyDestroy 表面已销毁
	NotifyDestroy NotificationFlags = 0x00000001
	// NotifyPaletteChange 调色板被替换
	NotifyPaletteChange NotificationFlags = 0x00000002
	// NotifyPaletteUpdate 调色板内容更新
	NotifyPaletteUpdate NotificationFlags = 0x00000004
	// NotifyField 隔行场切换
	NotifyField NotificationFlags = 0x00000008
	// NotifyAlphaRamp alpha 渐变表更新
	NotifyAlphaRamp NotificationFlags = 0x00000010
	// NotifyDisplay 缓冲已显示
	NotifyDisplay NotificationFlags = 0x00000020
	// NotifyBufferAllocationDestroy 缓冲分配被释放
	NotifyBufferAllocationDestroy NotificationFlags = 0x00000040
)

// Notification 表面通知（通道 0，驱动全局反应）
type Notification struct {
	Flags   NotificationFlags
	Surface types.ObjectID
}

// EventType 表面事件类型
type EventType uint32

const (
	// EventUpdate 表面内容已更新
	EventUpdate EventType = 1
	// EventDestroyed 表面已销毁
	EventDestroyed EventType = 2
)

// Event 表面事件（ChannelEvent）
type Event struct {
	Type        EventType
	FlipCount   uint32
	Update      types.Region
	UpdateRight types.Region
}

// messageSize 表面 Reactor 的消息大小上限
const messageSize = 64

// 字段编号
const (
	fieldFlags       protowire.Number = 1
	fieldSurface     protowire.Number = 2
	fieldEventType   protowire.Number = 3
	fieldFlipCount   protowire.Number = 4
	fieldUpdate      protowire.Number = 5
	fieldUpdateRight protowire.Number = 6
)

var errMalformed = errors.New("layer: malformed surface message")

func encodeNotification(n Notification) []byte {
	b := make([]byte, 0, 16)
	b = protowire.AppendTag(b, fieldFlags, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(n.Flags))
	b = protowire.AppendTag(b, fieldSurface, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(n.Surface))
	return b
}

func encodeEvent(e Event) []byte {
	b := make([]byte, 0, messageSize)
	b = protowire.AppendTag(b, fieldEventType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	b = protowire.AppendTag(b, fieldFlipCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.FlipCount))
	b = protowire.AppendTag(b, fieldUpdate, protowire.BytesType)
	b = protowire.AppendBytes(b, appendRegion(nil, e.Update))
	b = protowire.AppendTag(b, fieldUpdateRight, protowire.BytesType)
	b = protowire.AppendBytes(b, appendRegion(nil, e.UpdateRight))
	return b
}

func appendRegion(b []byte, r types.Region) []byte {
	for _, v := range [4]int{r.X1, r.Y1, r.X2, r.Y2} {
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
	}
	return b
}

func consumeRegion(b []byte) (types.Region, error) {
	var vals [4]int
	for i := range vals {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return types.Region{}, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		vals[i] = int(protowire.DecodeZigZag(v))
		b = b[n:]
	}
	return types.Region{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]}, nil
}

// decodeMessage 解码表面消息，未知字段被跳过
func decodeMessage(b []byte) (Notification, Event, error) {
	var (
		n Notification
		e Event
	)

	for len(b) > 0 {
		num, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return n, e, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
		}
		b = b[m:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return n, e, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			b = b[m:]

			switch num {
			case fieldFlags:
				n.Flags = NotificationFlags(v)
			case fieldSurface:
				n.Surface = types.ObjectID(v)
			case fieldEventType:
				e.Type = EventType(v)
			case fieldFlipCount:
				e.FlipCount = uint32(v)
			}

		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return n, e, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			b = b[m:]

			var err error
			switch num {
			case fieldUpdate:
				e.Update, err = consumeRegion(v)
			case fieldUpdateRight:
				e.UpdateRight, err = consumeRegion(v)
			}
			if err != nil {
				return n, e, err
			}

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return n, e, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return n, e, nil
}
