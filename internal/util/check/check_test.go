package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssume 测试软校验
func TestAssume(t *testing.T) {
	assert.True(t, Assume(true, "test", "never logged"))
	assert.False(t, Assume(false, "test", "logged", "id", 7))

	t.Log("✅ Assume 测试通过")
}

// TestAssert 测试硬不变量
func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() {
		Assert(true, "test", "fine")
	})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		v, ok := r.(*Violation)
		require.True(t, ok)
		assert.Equal(t, "core/reactor", v.Component)
		assert.Contains(t, v.Error(), "link mismatch")
	}()
	Assert(false, "core/reactor", "link mismatch")
}
