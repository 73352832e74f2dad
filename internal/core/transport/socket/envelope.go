package socket

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// 信封字段编号
const (
	fieldType    protowire.Number = 1
	fieldReactor protowire.Number = 2
	fieldChannel protowire.Number = 3
	fieldRef     protowire.Number = 4
	fieldSender  protowire.Number = 5
	fieldPayload protowire.Number = 6
)

// errMalformed 信封无法解析
var errMalformed = errors.New("socket: malformed envelope")

// encodeEnvelope 编码信封
func encodeEnvelope(env *pkgif.Envelope) []byte {
	b := make([]byte, 0, 32+len(env.Payload))

	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Type))
	b = protowire.AppendTag(b, fieldReactor, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Reactor))
	b = protowire.AppendTag(b, fieldChannel, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(env.Channel)))
	if env.Ref != types.RefNone {
		b = protowire.AppendTag(b, fieldRef, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(env.Ref))
	}
	b = protowire.AppendTag(b, fieldSender, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Sender))
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, env.Payload)

	return b
}

// decodeEnvelope 解码信封，未知字段被跳过
func decodeEnvelope(b []byte) (*pkgif.Envelope, error) {
	env := &pkgif.Envelope{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num != fieldPayload:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			b = b[m:]

			switch num {
			case fieldType:
				env.Type = types.MessageType(v)
			case fieldReactor:
				env.Reactor = types.ReactorID(v)
			case fieldChannel:
				env.Channel = types.Channel(protowire.DecodeZigZag(v))
			case fieldRef:
				env.Ref = types.RefToken(v)
			case fieldSender:
				env.Sender = types.FusionID(v)
			}

		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			env.Payload = append([]byte(nil), v...)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	if env.Reactor == 0 && env.Type == types.MessageReactor {
		return nil, fmt.Errorf("%w: missing reactor", errMalformed)
	}
	return env, nil
}
