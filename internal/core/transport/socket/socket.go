// Package socket 实现基于 Unix 数据报套接字的分发传输
//
// 没有可信仲裁者时使用。每个进程绑定
// ${SocketDir}/.fusion-${Index}/${FusionID 十六进制} 上的数据报套接字，
// 远端订阅记录在 World 级登记表中：(进程, 通道) -> 引用计数。
//
// 分发时信封以 protowire 编码后逐个发送给订阅进程；
// 对端不可达（ECONNREFUSED/ENOENT）视为进程已死，静默删除其记录。
package socket

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var (
	logger = log.Logger("transport/socket")
	hotLog = log.Throttled("transport/socket", time.Second, 5)
)

// Name 后端名称
const Name = "socket"

// envelopeOverhead 信封头部的最大编码长度
const envelopeOverhead = 64

// Transport 数据报套接字传输
type Transport struct {
	world    *world.World
	cfg      config.TransportConfig
	registry *Registry
	refs     *world.RefTable
	addrs    *lru.Cache[types.FusionID, *unix.SockaddrUnix]

	// sendto 发送一个数据报，可能返回 EINTR
	sendto func(fd int, b []byte, to *unix.SockaddrUnix) error

	mu   sync.RWMutex
	fd   int
	path string

	started atomic.Bool
	closing atomic.Bool
	wg      sync.WaitGroup
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建套接字传输
func New(w *world.World, cfg config.TransportConfig) (*Transport, error) {
	addrs, err := lru.New[types.FusionID, *unix.SockaddrUnix](cfg.AddressCacheSize)
	if err != nil {
		return nil, fmt.Errorf("socket: address cache: %w", err)
	}

	return &Transport{
		world:    w,
		cfg:      cfg,
		registry: RegistryOf(w.Shared()),
		refs:     w.Shared().Refs(),
		addrs:    addrs,
		sendto: func(fd int, b []byte, to *unix.SockaddrUnix) error {
			return unix.Sendto(fd, b, 0, to)
		},
		fd: -1,
	}, nil
}

// Name 返回后端名称
func (t *Transport) Name() string {
	return Name
}

// Registry 返回监听登记表
func (t *Transport) Registry() *Registry {
	return t.registry
}

// Path 返回本进程套接字地址
func (t *Transport) Path() string {
	return t.path
}

// Start 绑定套接字并启动接收 goroutine
func (t *Transport) Start(handler pkgif.MessageHandler) error {
	if !t.started.CompareAndSwap(false, true) {
		return nil
	}

	wcfg := t.world.Shared().Config()
	if err := os.MkdirAll(wcfg.SocketPath(), 0o700); err != nil {
		return fmt.Errorf("socket: create dir: %w", err)
	}

	path := t.world.SocketPath()
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("socket: bind %s: %w", path, err)
	}
	tv := unix.NsecToTimeval(t.cfg.ReceiveTimeout.Duration().Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		_ = os.Remove(path)
		return fmt.Errorf("socket: set receive timeout: %w", err)
	}

	t.mu.Lock()
	t.fd = fd
	t.path = path
	t.mu.Unlock()

	t.wg.Add(1)
	go t.receiveLoop(fd, handler)

	logger.Debug("套接字已绑定", "fusion_id", t.world.ID(), "path", path)
	return nil
}

// receiveLoop 接收数据报并交给处理器
//
// 接收超时让循环能周期性检查关闭标志。
func (t *Transport) receiveLoop(fd int, handler pkgif.MessageHandler) {
	defer t.wg.Done()

	buf := make([]byte, t.cfg.MaxMessageSize+envelopeOverhead)
	for {
		if t.closing.Load() {
			return
		}

		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
				continue
			case errors.Is(err, unix.EBADF):
				return
			default:
				hotLog.Warn("接收数据报失败", "error", err)
				continue
			}
		}

		env, err := decodeEnvelope(buf[:n])
		if err != nil {
			hotLog.Warn("丢弃无法解析的数据报", "bytes", n, "error", err)
			continue
		}
		handler.HandleMessage(env)
	}
}

// Close 停止接收并删除套接字文件
func (t *Transport) Close() error {
	if !t.started.Load() || !t.closing.CompareAndSwap(false, true) {
		return nil
	}
	t.wg.Wait()

	t.mu.Lock()
	fd := t.fd
	t.fd = -1
	t.mu.Unlock()

	var err error
	if fd >= 0 {
		err = unix.Close(fd)
	}
	if t.path != "" {
		if rmErr := os.Remove(t.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
	}
	t.registry.RemoveProcess(t.world.ID())
	return err
}

// AttachRemote 登记 (本进程, 通道) 监听
func (t *Transport) AttachRemote(reactor types.ReactorID, ch types.Channel) error {
	if !t.registry.Add(reactor, ch, t.world.ID()) {
		return types.ErrDestroyed
	}
	return nil
}

// DetachRemote 撤销 (本进程, 通道) 的一次登记
func (t *Transport) DetachRemote(reactor types.ReactorID, ch types.Channel) error {
	t.registry.Remove(reactor, ch, t.world.ID())
	return nil
}

// Send 向订阅进程逐个发送信封
//
// 引用令牌在任何发送之前为每个接收方加一；发送失败的接收方由本方代为释放。
func (t *Transport) Send(env *pkgif.Envelope, self bool) error {
	ids, ok := t.registry.Listeners(env.Reactor, env.Channel)
	if !ok {
		return types.ErrDestroyed
	}

	targets := ids[:0]
	for _, id := range ids {
		if id == env.Sender && !self {
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.fd < 0 {
		return fmt.Errorf("socket not bound: %w", types.ErrTransport)
	}

	data := encodeEnvelope(env)

	if env.Ref != types.RefNone {
		for range targets {
			if err := t.refs.Up(env.Ref); err != nil {
				return fmt.Errorf("socket: %v: %w", err, types.ErrTransport)
			}
		}
	}

	var errs error
	for _, id := range targets {
		err := t.send(data, t.address(id))
		if err == nil {
			continue
		}

		if env.Ref != types.RefNone {
			_ = t.refs.Down(env.Ref)
		}
		if errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT) {
			logger.Debug("接收方不可达，删除监听记录", "reactor", env.Reactor, "fusion_id", id, "error", err)
			t.registry.Prune(env.Reactor, id)
			t.addrs.Remove(id)
			continue
		}
		errs = multierr.Append(errs, fmt.Errorf("send to %s: %w", id, err))
	}

	if errs != nil {
		return fmt.Errorf("socket: %v: %w", errs, types.ErrTransport)
	}
	return nil
}

// send 发送一个数据报，EINTR 透明重试
func (t *Transport) send(data []byte, to *unix.SockaddrUnix) error {
	for {
		err := t.sendto(t.fd, data, to)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// address 返回进程的套接字地址
func (t *Transport) address(id types.FusionID) *unix.SockaddrUnix {
	if addr, ok := t.addrs.Get(id); ok {
		return addr
	}
	addr := &unix.SockaddrUnix{Name: world.SocketPathOf(t.world.Shared().Config(), id)}
	t.addrs.Add(id, addr)
	return addr
}

// DestroyReactor 删除 Reactor 的全部监听记录
func (t *Transport) DestroyReactor(reactor types.ReactorID) error {
	t.registry.Destroy(reactor)
	return nil
}

// Capabilities 返回传输能力
func (t *Transport) Capabilities() pkgif.TransportCapabilities {
	return pkgif.TransportCapabilities{
		Remote:           true,
		SwappableLock:    true,
		Naming:           true,
		DispatchCallback: true,
	}
}
