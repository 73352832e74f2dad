package storage

import (
	"errors"

	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/engine"
)

var (
	// ErrNotFound 键不存在
	ErrNotFound = engine.ErrNotFound

	// ErrEmptyKey 空键
	ErrEmptyKey = engine.ErrEmptyKey

	// ErrClosed 引擎已关闭
	ErrClosed = engine.ErrClosed
)

// IsNotFound 属性键是否不存在
func IsNotFound(err error) bool {
	return errors.Is(err, engine.ErrNotFound)
}
