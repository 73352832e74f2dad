package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/config"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
	"golang.org/x/sys/unix"
)

// World 单个进程对 World 的视图
//
// 同一个 Shared 上可以 Enter 多次，每次代表一个参与进程；
// 第一个加入的进程是 Master（FusionID 1）。
type World struct {
	shared  *Shared
	process *Process
	cfg     config.WorldConfig

	left atomic.Bool

	sigMu    sync.Mutex
	onSignal func(sig unix.Signal)
}

var _ pkgif.World = (*World)(nil)

// Enter 加入 World
func Enter(shared *Shared) (*World, error) {
	if shared == nil {
		return nil, fmt.Errorf("enter world: %w", types.ErrInvalidArgument)
	}

	cfg := shared.Config()
	exe := cfg.Executable
	if exe == "" {
		if path, err := os.Executable(); err == nil {
			exe = path
		}
	}

	w := &World{shared: shared, cfg: cfg}
	w.process = shared.addProcess(os.Getpid(), exe)
	w.process.onSignal = w.deliverSignal

	logger.Info("加入 World", "world", shared.UUID(), "fusion_id", w.process.ID, "master", w.process.ID.IsMaster())
	return w, nil
}

// Shared 返回共享段
func (w *World) Shared() *Shared {
	return w.shared
}

// ID 返回本进程身份
func (w *World) ID() types.FusionID {
	return w.process.ID
}

// IsMaster 本进程是否为 Master
func (w *World) IsMaster() bool {
	return w.process.ID.IsMaster()
}

// Process 返回注册表条目
func (w *World) Process() *Process {
	return w.process
}

// Executable 返回本进程可执行文件路径
func (w *World) Executable() string {
	return w.process.Executable
}

// SocketPath 返回本进程的数据报套接字地址
func (w *World) SocketPath() string {
	return SocketPathOf(w.cfg, w.process.ID)
}

// SocketPathOf 返回指定进程的数据报套接字地址
func SocketPathOf(cfg config.WorldConfig, id types.FusionID) string {
	return filepath.Join(cfg.SocketPath(), id.String())
}

// AllocateShared 从共享内存区分配清零内存
func (w *World) AllocateShared(size int) ([]byte, error) {
	return w.shared.arena.Allocate(size)
}

// FreeShared 归还共享内存
func (w *World) FreeShared(buf []byte) {
	w.shared.arena.Free(buf)
}

// RegisterRoot 设置 World 根对象
func (w *World) RegisterRoot(root any) error {
	if !w.IsMaster() {
		return fmt.Errorf("register root from %s: %w", w.process.ID, types.ErrAccessDenied)
	}
	w.shared.setRoot(root)
	return nil
}

// Root 返回 World 根对象
func (w *World) Root() any {
	return w.shared.getRoot()
}

// Left 本进程是否已离开
func (w *World) Left() bool {
	return w.left.Load()
}

// OnSignal 设置进程内信号处理函数
//
// 未设置时 SIGTERM 与 SIGKILL 都等价于 Leave。
func (w *World) OnSignal(fn func(sig unix.Signal)) {
	w.sigMu.Lock()
	w.onSignal = fn
	w.sigMu.Unlock()
}

func (w *World) deliverSignal(sig int) {
	s := unix.Signal(sig)

	w.sigMu.Lock()
	fn := w.onSignal
	w.sigMu.Unlock()

	if fn != nil && s != unix.SIGKILL {
		fn(s)
		return
	}
	switch s {
	case unix.SIGTERM, unix.SIGKILL:
		_ = w.Leave()
	}
}

// Leave 离开 World
//
// 离开回调（节点清理、订阅撤销）在返回前执行完毕。
func (w *World) Leave() error {
	if !w.left.CompareAndSwap(false, true) {
		return ErrLeft
	}
	w.shared.removeProcess(w.process.ID)
	return nil
}
