// Package types 定义 Fusion 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              状态相关错误
// ============================================================================

var (
	// ErrBusy 已处于目标状态（如重复激活）
	ErrBusy = errors.New("already in target state")

	// ErrNotActive 对象尚未激活
	ErrNotActive = errors.New("object not activated")

	// ErrClosed 组件已关闭
	ErrClosed = errors.New("closed")
)

// ============================================================================
//                              生命周期相关错误
// ============================================================================

var (
	// ErrNotFound ID 无效或已过期
	ErrNotFound = errors.New("id not found")

	// ErrDead 对象正在销毁
	ErrDead = errors.New("object is dead")

	// ErrDestroyed 对象或 Reactor 已销毁
	ErrDestroyed = errors.New("destroyed")
)

// ============================================================================
//                              能力相关错误
// ============================================================================

var (
	// ErrUnsupported 当前传输不支持该操作
	ErrUnsupported = errors.New("operation not supported")

	// ErrUnimplemented 操作未实现
	ErrUnimplemented = errors.New("operation not implemented")

	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAccessDenied 无访问权限
	ErrAccessDenied = errors.New("access denied")
)

// ============================================================================
//                              传输与资源相关错误
// ============================================================================

var (
	// ErrTransport 传输失败（EINTR 之外的发送/调用错误）
	ErrTransport = errors.New("transport failure")

	// ErrOutOfSharedMemory 共享内存耗尽
	ErrOutOfSharedMemory = errors.New("out of shared memory")

	// ErrOutOfMemory 本地内存耗尽
	ErrOutOfMemory = errors.New("out of memory")

	// ErrTimeout 等待超时
	ErrTimeout = errors.New("timeout")
)

// IsBenign 判断错误是否为可忽略的失效错误（NotFound/Dead/Destroyed）
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDead) || errors.Is(err, ErrDestroyed)
}
