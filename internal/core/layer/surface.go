package layer

import (
	"fmt"
	"sync"

	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ChannelEvent 表面事件通道（通道 0 承载通知与全局反应）
const ChannelEvent types.Channel = 1

// Surface 区域显示的表面
//
// 表面通过自身的 Reactor 广播通知（通道 0）与事件（ChannelEvent）。
// Lock/Unlock 保护缓冲角色与翻转计数；LockBuffer 必须在 Lock 内调用。
type Surface interface {
	// ID 返回表面对象 ID
	ID() types.ObjectID

	// Reactor 返回表面的 Reactor
	Reactor() *reactor.Reactor

	// Size 返回表面尺寸
	Size() (width, height int)

	// Stereo 是否为立体表面
	Stereo() bool

	// HasPalette 是否带调色板
	HasPalette() bool

	// Field 返回当前隔行场
	Field() int

	// AlphaRamp 返回 alpha 渐变表
	AlphaRamp() [4]uint8

	Lock()
	Unlock()

	// LockBuffer 锁定 flipCount 时刻指定角色与眼别的缓冲
	LockBuffer(role types.BufferRole, eye types.Eye, flipCount uint32) (*types.BufferLock, error)

	// UnlockBuffer 解锁缓冲
	UnlockBuffer(lock *types.BufferLock) error

	// FlipBuffers 交换前后缓冲（不经过驱动）
	FlipBuffers()

	// BackToFront 把后缓冲的 update 区域回拷到前缓冲
	BackToFront(update *types.Region, eye types.Eye)

	// NotifyDisplay 通知缓冲 index 已显示
	NotifyDisplay(index int)

	// DeallocateBuffers 释放缓冲分配
	DeallocateBuffers()
}

// ============================================================================
//                              SurfaceObject
// ============================================================================

// SurfaceConfig 表面配置
type SurfaceConfig struct {
	Width   int
	Height  int
	Buffers int
	Stereo  bool
	Palette bool
}

// SurfaceObject 对象池中的表面
//
// 只记账缓冲角色与锁计数，不持有像素数据。
type SurfaceObject struct {
	obj  *objpool.Object
	pool *objpool.Pool
	proc *reactor.Process
	cfg  SurfaceConfig

	lock sync.Mutex

	mu        sync.Mutex
	flips     uint32
	field     int
	alphaRamp [4]uint8
	allocated bool
	locked    int
	copies    int
	displayed []int
}

var _ Surface = (*SurfaceObject)(nil)

// surfaceRecordSize 表面在共享内存区中的记录大小
const surfaceRecordSize = 128

// NewSurfacePool 创建表面对象池
func NewSurfacePool(f *objpool.Factory) (*objpool.Pool, error) {
	return f.NewPool("Surface Pool", surfaceRecordSize, messageSize, func(obj *objpool.Object, zombie bool) {
		logger.Debug("析构表面", "surface", obj.ID(), "zombie", zombie)
	})
}

// NewSurface 在进程 proc 中创建并激活表面
func NewSurface(pool *objpool.Pool, proc *reactor.Process, cfg SurfaceConfig) (*SurfaceObject, error) {
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("surface %dx%d: %w", cfg.Width, cfg.Height, types.ErrInvalidArgument)
	}
	if cfg.Buffers < 1 {
		cfg.Buffers = 1
	}

	obj, err := pool.Create(proc)
	if err != nil {
		return nil, err
	}
	if err := pool.Activate(obj); err != nil {
		_ = pool.Unref(obj)
		return nil, err
	}

	return &SurfaceObject{
		obj:       obj,
		pool:      pool,
		proc:      proc,
		cfg:       cfg,
		allocated: true,
		alphaRamp: [4]uint8{0x00, 0x55, 0xaa, 0xff},
	}, nil
}

// ID 返回表面对象 ID
func (s *SurfaceObject) ID() types.ObjectID {
	return s.obj.ID()
}

// Reactor 返回表面的 Reactor
func (s *SurfaceObject) Reactor() *reactor.Reactor {
	return s.obj.Reactor
}

// Size 返回表面尺寸
func (s *SurfaceObject) Size() (int, int) {
	return s.cfg.Width, s.cfg.Height
}

// Stereo 是否为立体表面
func (s *SurfaceObject) Stereo() bool {
	return s.cfg.Stereo
}

// HasPalette 是否带调色板
func (s *SurfaceObject) HasPalette() bool {
	return s.cfg.Palette
}

// Field 返回当前隔行场
func (s *SurfaceObject) Field() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field
}

// AlphaRamp 返回 alpha 渐变表
func (s *SurfaceObject) AlphaRamp() [4]uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alphaRamp
}

// Lock 锁定表面
func (s *SurfaceObject) Lock() {
	s.lock.Lock()
}

// Unlock 解锁表面
func (s *SurfaceObject) Unlock() {
	s.lock.Unlock()
}

// LockBuffer 锁定缓冲
//
// 缓冲下标按 (flipCount + 角色偏移) 对缓冲数取模。
func (s *SurfaceObject) LockBuffer(role types.BufferRole, eye types.Eye, flipCount uint32) (*types.BufferLock, error) {
	if eye == types.EyeRight && !s.cfg.Stereo {
		return nil, fmt.Errorf("right eye of mono surface %s: %w", s.obj.ID(), types.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.allocated = true
	s.locked++

	n := uint32(s.cfg.Buffers)
	return &types.BufferLock{
		Role:  role,
		Eye:   eye,
		Index: int((flipCount + uint32(role)) % n),
		Pitch: s.cfg.Width * 4,
	}, nil
}

// UnlockBuffer 解锁缓冲
func (s *SurfaceObject) UnlockBuffer(lock *types.BufferLock) error {
	if lock == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked == 0 {
		return fmt.Errorf("unlock buffer of %s: %w", s.obj.ID(), types.ErrInvalidArgument)
	}
	s.locked--
	return nil
}

// FlipBuffers 交换前后缓冲
func (s *SurfaceObject) FlipBuffers() {
	s.mu.Lock()
	s.flips++
	s.mu.Unlock()
}

// BackToFront 回拷后缓冲
func (s *SurfaceObject) BackToFront(_ *types.Region, _ types.Eye) {
	s.mu.Lock()
	s.copies++
	s.mu.Unlock()
}

// NotifyDisplay 记录已显示的缓冲
func (s *SurfaceObject) NotifyDisplay(index int) {
	s.mu.Lock()
	s.displayed = append(s.displayed, index)
	s.mu.Unlock()
}

// DeallocateBuffers 释放缓冲分配并通知监听方
func (s *SurfaceObject) DeallocateBuffers() {
	s.mu.Lock()
	was := s.allocated
	s.allocated = false
	s.mu.Unlock()

	if !was {
		return
	}
	if err := s.notify(NotifyBufferAllocationDestroy); err != nil {
		logger.Debug("通知缓冲释放失败", "surface", s.obj.ID(), "error", err)
	}
}

// Stats 返回翻转、回拷与未释放缓冲锁计数
func (s *SurfaceObject) Stats() (flips uint32, copies, locked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flips, s.copies, s.locked
}

// Allocated 缓冲是否已分配
func (s *SurfaceObject) Allocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated
}

// ============================================================================
//                              通知与事件
// ============================================================================

// SetField 切换隔行场并通知
func (s *SurfaceObject) SetField(field int) error {
	s.mu.Lock()
	s.field = field
	s.mu.Unlock()
	return s.notify(NotifyField)
}

// SetAlphaRamp 更新 alpha 渐变表并通知
func (s *SurfaceObject) SetAlphaRamp(ramp [4]uint8) error {
	s.mu.Lock()
	s.alphaRamp = ramp
	s.mu.Unlock()
	return s.notify(NotifyAlphaRamp)
}

// PaletteChanged 通知调色板更新
func (s *SurfaceObject) PaletteChanged() error {
	return s.notify(NotifyPaletteChange | NotifyPaletteUpdate)
}

// Flip 翻转表面并广播更新事件
//
// left/right 为更新区域，nil 表示整个表面。
func (s *SurfaceObject) Flip(left, right *types.Region) error {
	full := types.Region{X2: s.cfg.Width - 1, Y2: s.cfg.Height - 1}
	e := Event{Type: EventUpdate, Update: full, UpdateRight: full}
	if left != nil {
		e.Update = *left
	}
	if right != nil {
		e.UpdateRight = *right
	}

	s.mu.Lock()
	s.flips++
	e.FlipCount = s.flips
	s.mu.Unlock()

	return s.obj.Dispatch(s.proc, ChannelEvent, encodeEvent(e), true, nil)
}

// Destroy 广播销毁通知并释放本地引用
func (s *SurfaceObject) Destroy() error {
	err := s.notify(NotifyDestroy)
	if derr := s.obj.Dispatch(s.proc, ChannelEvent, encodeEvent(Event{Type: EventDestroyed}), true, nil); err == nil {
		err = derr
	}
	if uerr := s.pool.Unref(s.obj); err == nil {
		err = uerr
	}
	return err
}

// notify 在通道 0 上分发通知，同时执行区域的全局反应
func (s *SurfaceObject) notify(flags NotificationFlags) error {
	msg := encodeNotification(Notification{Flags: flags, Surface: s.obj.ID()})
	return s.obj.Dispatch(s.proc, types.ChannelGlobals, msg, true, SurfaceGlobals)
}
