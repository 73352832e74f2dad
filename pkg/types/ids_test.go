package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFusionID 测试进程身份
func TestFusionID(t *testing.T) {
	assert.True(t, FusionIDMaster.IsMaster())
	assert.False(t, FusionID(2).IsMaster())
	assert.Equal(t, "1f", FusionID(31).String())

	t.Log("✅ FusionID 测试通过")
}

// TestReactorID_String 测试 Reactor ID 格式
func TestReactorID_String(t *testing.T) {
	assert.Equal(t, "0x0000002a", ReactorID(42).String())
	assert.Equal(t, "42", ObjectID(42).String())
}

// TestIsBenign 测试失效错误分类
func TestIsBenign(t *testing.T) {
	assert.True(t, IsBenign(ErrDestroyed))
	assert.True(t, IsBenign(fmt.Errorf("send: %w", ErrNotFound)))
	assert.True(t, IsBenign(ErrDead))
	assert.False(t, IsBenign(ErrTransport))
	assert.False(t, IsBenign(errors.New("other")))
}
