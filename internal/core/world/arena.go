package world

import (
	"fmt"
	"sync"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// Arena 共享内存区记账
//
// 所有共享记录（对象、Reactor 消息缓冲）从这里分配，
// 容量耗尽时返回 types.ErrOutOfSharedMemory，与本地内存耗尽区分。
type Arena struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	peak     int64
	allocs   int64
}

// ArenaStats 共享内存区统计
type ArenaStats struct {
	Capacity int64
	Used     int64
	Peak     int64
	Allocs   int64
}

// NewArena 创建共享内存区
func NewArena(capacity int64) *Arena {
	return &Arena{capacity: capacity}
}

// Allocate 分配 size 字节的清零内存
func (a *Arena) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, types.ErrInvalidArgument)
	}

	a.mu.Lock()
	if a.used+int64(size) > a.capacity {
		used := a.used
		a.mu.Unlock()
		return nil, fmt.Errorf("allocate %d bytes (%d/%d used): %w", size, used, a.capacity, types.ErrOutOfSharedMemory)
	}
	a.used += int64(size)
	a.allocs++
	if a.used > a.peak {
		a.peak = a.used
	}
	a.mu.Unlock()

	return make([]byte, size), nil
}

// Free 归还内存
func (a *Arena) Free(buf []byte) {
	if buf == nil {
		return
	}

	a.mu.Lock()
	a.used -= int64(cap(buf))
	a.allocs--
	a.mu.Unlock()
}

// Stats 返回统计信息
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return ArenaStats{
		Capacity: a.capacity,
		Used:     a.used,
		Peak:     a.peak,
		Allocs:   a.allocs,
	}
}
