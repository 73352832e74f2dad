package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestReactionResult_String 测试反应结果字符串
func TestReactionResult_String(t *testing.T) {
	tests := []struct {
		r    ReactionResult
		want string
	}{
		{RSOK, "ok"},
		{RSRemove, "remove"},
		{RSDrop, "drop"},
		{ReactionResult(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.String())
		})
	}

	t.Log("✅ ReactionResult.String 测试通过")
}

// TestObjectState_String 测试对象状态字符串
func TestObjectState_String(t *testing.T) {
	assert.Equal(t, "init", ObjectInit.String())
	assert.Equal(t, "active", ObjectActive.String())
	assert.Equal(t, "deinit", ObjectDeinit.String())
	assert.Equal(t, "unknown", ObjectState(-1).String())
}

// TestMessageType_Values 测试消息类型取值（线上格式依赖这些数值）
func TestMessageType_Values(t *testing.T) {
	assert.Equal(t, MessageType(0), MessageSend)
	assert.Equal(t, MessageType(2), MessageLeave)
	assert.Equal(t, MessageType(5), MessageReactor)
	assert.Equal(t, "reactor", MessageReactor.String())
	assert.Equal(t, "call-return", MessageCallReturn.String())
}
