package interfaces

import "github.com/directfb2/DirectFB2-sub002/pkg/types"

// World 进程加入的多进程会话
//
// 由 internal/core/world.World 实现。
type World interface {
	// ID 返回本进程身份
	ID() types.FusionID

	// IsMaster 本进程是否为 Master
	IsMaster() bool

	// AllocateShared 从共享内存区分配清零内存
	//
	// 返回:
	//   - error: 容量耗尽时返回 types.ErrOutOfSharedMemory
	AllocateShared(size int) ([]byte, error)

	// FreeShared 归还共享内存
	FreeShared(buf []byte)

	// RegisterRoot 设置 World 根对象（仅 Master）
	RegisterRoot(root any) error

	// Root 返回 World 根对象
	Root() any
}
