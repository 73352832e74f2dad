package engine

import (
	"fmt"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// 存储引擎错误，均可用 errors.Is 归类到 pkg/types 的公共错误
var (
	// ErrNotFound 键不存在
	ErrNotFound = fmt.Errorf("storage: key %w", types.ErrNotFound)

	// ErrEmptyKey 空键
	ErrEmptyKey = fmt.Errorf("storage: empty key: %w", types.ErrInvalidArgument)

	// ErrClosed 引擎已关闭
	ErrClosed = fmt.Errorf("storage: engine %w", types.ErrClosed)

	// ErrInvalidConfig 内存模式关闭时缺少数据目录
	ErrInvalidConfig = fmt.Errorf("storage: missing path for on-disk engine: %w", types.ErrInvalidArgument)
)
