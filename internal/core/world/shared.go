package world

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/directfb2/DirectFB2-sub002/config"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("core/world")

// ============================================================================
// Process 注册表条目
// ============================================================================

// Process 已加入 World 的进程
type Process struct {
	ID         types.FusionID
	PID        int
	Executable string
	Joined     time.Time

	left     chan struct{}
	leftOnce sync.Once
	onSignal func(sig int)
}

// Left 返回进程离开时关闭的通道
func (p *Process) Left() <-chan struct{} {
	return p.left
}

func (p *Process) markLeft() {
	p.leftOnce.Do(func() { close(p.left) })
}

// ============================================================================
// Shared 共享段
// ============================================================================

// Shared World 的共享段
type Shared struct {
	uuid  uuid.UUID
	cfg   config.WorldConfig
	clock clock.Clock

	arena *Arena
	refs  *RefTable

	nextPool atomic.Uint32

	mu          sync.Mutex
	nextReactor types.ReactorID
	reactors    map[types.ReactorID]struct{} // 存活的 Reactor
	nextFusion  types.FusionID
	processes  map[types.FusionID]*Process
	root       any
	pools      map[types.PoolID]pkgif.ObjectPool
	extensions map[string]any
	leaveHooks map[int]func(types.FusionID)
	nextHook   int
}

// SharedOption Shared 选项
type SharedOption func(*Shared)

// WithClock 使用指定时钟（测试使用 clock.NewMock()）
func WithClock(c clock.Clock) SharedOption {
	return func(s *Shared) {
		s.clock = c
	}
}

// NewShared 创建共享段
func NewShared(cfg config.WorldConfig, opts ...SharedOption) *Shared {
	s := &Shared{
		uuid:       uuid.New(),
		cfg:        cfg,
		clock:      clock.New(),
		arena:      NewArena(cfg.ArenaSize),
		refs:       newRefTable(),
		reactors:   make(map[types.ReactorID]struct{}),
		processes:  make(map[types.FusionID]*Process),
		pools:      make(map[types.PoolID]pkgif.ObjectPool),
		extensions: make(map[string]any),
		leaveHooks: make(map[int]func(types.FusionID)),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug("创建共享段", "world", s.uuid, "index", cfg.Index, "arena", cfg.ArenaSize)
	return s
}

// UUID 返回 World 的唯一标识
func (s *Shared) UUID() uuid.UUID {
	return s.uuid
}

// Config 返回 World 配置
func (s *Shared) Config() config.WorldConfig {
	return s.cfg
}

// Clock 返回共享时钟
func (s *Shared) Clock() clock.Clock {
	return s.clock
}

// Arena 返回共享内存区
func (s *Shared) Arena() *Arena {
	return s.arena
}

// Refs 返回引用令牌表
func (s *Shared) Refs() *RefTable {
	return s.refs
}

// NewReactorID 分配 Reactor ID 并登记为存活
func (s *Shared) NewReactorID() types.ReactorID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReactor++
	s.reactors[s.nextReactor] = struct{}{}
	return s.nextReactor
}

// RetireReactor 注销 Reactor ID，重复调用无副作用
func (s *Shared) RetireReactor(id types.ReactorID) {
	s.mu.Lock()
	delete(s.reactors, id)
	s.mu.Unlock()
}

// ReactorRetired 是否为已分配且已注销的 Reactor ID
//
// 只记录存活的 ID：已分配（不大于最后分配的 ID）但不在存活表中的即为已销毁，
// 表的大小随存活 Reactor 数而不随历史销毁次数增长。
// 从未分配的 ID 返回 false。
func (s *Shared) ReactorRetired(id types.ReactorID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 || id > s.nextReactor {
		return false
	}
	_, live := s.reactors[id]
	return !live
}

// LiveReactors 返回存活的 Reactor 数
func (s *Shared) LiveReactors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reactors)
}

// ============================================================================
// 进程注册表
// ============================================================================

// Process 返回进程条目
func (s *Shared) Process(id types.FusionID) (*Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processes[id]
	return p, ok
}

// Processes 返回按 ID 排序的进程列表
func (s *Shared) Processes() []*Process {
	s.mu.Lock()
	list := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		list = append(list, p)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// OnLeave 注册进程离开回调，返回取消函数
//
// 回调在注册表锁外执行。
func (s *Shared) OnLeave(fn func(types.FusionID)) (cancel func()) {
	s.mu.Lock()
	s.nextHook++
	key := s.nextHook
	s.leaveHooks[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.leaveHooks, key)
		s.mu.Unlock()
	}
}

func (s *Shared) addProcess(pid int, exe string) *Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFusion++
	p := &Process{
		ID:         s.nextFusion,
		PID:        pid,
		Executable: exe,
		Joined:     s.clock.Now(),
		left:       make(chan struct{}),
	}
	s.processes[p.ID] = p
	return p
}

// removeProcess 移除进程并执行离开回调
func (s *Shared) removeProcess(id types.FusionID) {
	s.mu.Lock()
	p, ok := s.processes[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.processes, id)

	hooks := make([]func(types.FusionID), 0, len(s.leaveHooks))
	keys := make([]int, 0, len(s.leaveHooks))
	for k := range s.leaveHooks {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		hooks = append(hooks, s.leaveHooks[k])
	}
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	p.markLeft()

	logger.Debug("进程离开 World", "fusion_id", id)
}

// ============================================================================
// 根对象
// ============================================================================

func (s *Shared) setRoot(root any) {
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()
}

func (s *Shared) getRoot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// ============================================================================
// 对象池注册表
// ============================================================================

// RegisterPool 登记对象池，返回池 ID
//
// pool 由 create 根据分配到的 ID 构造。
func (s *Shared) RegisterPool(create func(types.PoolID) pkgif.ObjectPool) pkgif.ObjectPool {
	id := types.PoolID(s.nextPool.Add(1))
	pool := create(id)

	s.mu.Lock()
	s.pools[id] = pool
	s.mu.Unlock()
	return pool
}

// UnregisterPool 注销对象池
func (s *Shared) UnregisterPool(id types.PoolID) {
	s.mu.Lock()
	delete(s.pools, id)
	s.mu.Unlock()
}

// Pool 按 ID 查找对象池
func (s *Shared) Pool(id types.PoolID) (pkgif.ObjectPool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[id]
	return p, ok
}

// Pools 返回按 ID 排序的对象池列表
func (s *Shared) Pools() []pkgif.ObjectPool {
	s.mu.Lock()
	list := make([]pkgif.ObjectPool, 0, len(s.pools))
	for _, p := range s.pools {
		list = append(list, p)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// ============================================================================
// 扩展槽
// ============================================================================

// Extension 返回名为 key 的共享扩展，不存在时用 create 创建
//
// 传输后端用它保存 World 级状态（仲裁者、远端订阅表）。
func (s *Shared) Extension(key string, create func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.extensions[key]; ok {
		return v
	}
	v := create()
	s.extensions[key] = v
	return v
}

// ArenaUsage 返回共享内存区用量与容量
func (s *Shared) ArenaUsage() (used, capacity int64) {
	st := s.arena.Stats()
	return st.Used, st.Capacity
}
