package fusion

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// Runtime 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted Runtime 未启动
	ErrNotStarted = errors.New("runtime not started")

	// ErrAlreadyStarted Runtime 已启动
	ErrAlreadyStarted = errors.New("runtime already started")

	// ErrClosed Runtime 已关闭
	ErrClosed = errors.New("runtime closed")
)
