package world

import "errors"

var (
	// ErrLeft 进程已离开 World
	ErrLeft = errors.New("world: process has left")

	// ErrUnknownProcess 进程不在注册表中
	ErrUnknownProcess = errors.New("world: unknown process")

	// ErrUnknownRef 引用令牌不存在
	ErrUnknownRef = errors.New("world: unknown reference token")
)
