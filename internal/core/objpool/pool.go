package objpool

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/kv"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("core/objpool")

// Destructor 对象类析构函数
//
// zombie 为 true 表示对象在池销毁时仍有引用。
type Destructor func(obj *Object, zombie bool)

// Pool 引用计数对象池
//
// 池在创建时登记到 World 的池注册表，关闭流程通过注册表轮询 Size()。
type Pool struct {
	id         types.PoolID
	name       string
	shared     *world.Shared
	cfg        config.PoolConfig
	objSize    int
	msgSize    int
	destructor Destructor
	props      *kv.Store
	onDrain    func(*Object)
	info       bool

	mu        sync.Mutex
	nextID    types.ObjectID
	objects   map[types.ObjectID]*Object
	draining  bool
	destroyed bool

	cancelLeave func()
}

var _ pkgif.ObjectPool = (*Pool)(nil)

// Option 池选项
type Option func(*Pool)

// WithConfig 设置池配置
func WithConfig(cfg config.PoolConfig) Option {
	return func(p *Pool) {
		p.cfg = cfg
	}
}

// WithProperties 设置属性存储，池会在其下使用 "<pool id>/" 子前缀
func WithProperties(store *kv.Store) Option {
	return func(p *Pool) {
		p.props = store
	}
}

// WithDrainHook 设置排空通知
func WithDrainHook(fn func(*Object)) Option {
	return func(p *Pool) {
		p.onDrain = fn
	}
}

// WithZombieInfo 池销毁时逐个输出僵尸对象的引用数与创建栈
func WithZombieInfo(enabled bool) Option {
	return func(p *Pool) {
		p.info = enabled
	}
}

// New 创建对象池并登记到 World
//
// objSize 为每个对象在共享内存区中的记录大小，msgSize 为对象 Reactor 的消息大小。
func New(shared *world.Shared, name string, objSize, msgSize int, destructor Destructor, opts ...Option) (*Pool, error) {
	if objSize < 1 || msgSize < 1 {
		return nil, fmt.Errorf("pool %q: object size %d, message size %d: %w", name, objSize, msgSize, types.ErrInvalidArgument)
	}
	if destructor == nil {
		return nil, fmt.Errorf("pool %q: nil destructor: %w", name, types.ErrInvalidArgument)
	}

	p := &Pool{
		name:       name,
		shared:     shared,
		cfg:        config.DefaultPoolConfig(),
		objSize:    objSize,
		msgSize:    msgSize,
		destructor: destructor,
		objects:    make(map[types.ObjectID]*Object),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	shared.RegisterPool(func(id types.PoolID) pkgif.ObjectPool {
		p.id = id
		return p
	})
	if p.props != nil {
		p.props = p.props.Pool(p.id)
	}
	p.cancelLeave = shared.OnLeave(p.processLeft)

	logger.Debug("创建对象池", "pool", p.id, "name", name, "object_size", objSize)
	return p, nil
}

// ID 返回池 ID
func (p *Pool) ID() types.PoolID {
	return p.id
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Size 返回存活对象数
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// ============================================================================
// 创建与查找
// ============================================================================

// Create 在进程 proc 中创建对象
//
// 新对象处于 Init 状态，持有一个本地引用。
//
// 返回:
//   - error: 池排空中返回 types.ErrClosed；超出配额或共享内存耗尽返回
//     types.ErrOutOfSharedMemory
func (p *Pool) Create(proc *reactor.Process) (*Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, fmt.Errorf("pool %q: %w", p.name, types.ErrDestroyed)
	}
	if p.draining {
		return nil, fmt.Errorf("pool %q draining: %w", p.name, types.ErrClosed)
	}
	if p.cfg.MaxObjects > 0 && len(p.objects) >= p.cfg.MaxObjects {
		return nil, fmt.Errorf("pool %q holds %d objects: %w", p.name, len(p.objects), types.ErrOutOfSharedMemory)
	}

	record, err := p.shared.Arena().Allocate(p.objSize)
	if err != nil {
		return nil, fmt.Errorf("pool %q: %w", p.name, err)
	}

	p.nextID++
	id := p.nextID

	r, err := reactor.New(proc, p.msgSize, fmt.Sprintf("%s/%d", p.name, id))
	if err != nil {
		p.shared.Arena().Free(record)
		return nil, fmt.Errorf("pool %q: %w", p.name, err)
	}

	obj := &Object{
		Reactor: r,
		id:      id,
		pool:    p,
		record:  record,
		refs:    1,
		creator: proc.ID(),
		created: p.shared.Clock().Now(),
	}
	obj.state.Store(int32(types.ObjectInit))
	if p.cfg.CaptureStacks {
		obj.stack = string(debug.Stack())
	}
	p.objects[id] = obj

	logger.Debug("创建对象", "pool", p.name, "object", id, "creator", obj.creator)
	return obj, nil
}

// Get 按 ID 取得对象并增加一个本地引用
//
// 返回:
//   - error: ID 不存在返回 types.ErrNotFound；对象正在销毁返回 types.ErrDead
func (p *Pool) Get(id types.ObjectID) (*Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	obj, ok := p.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s in %q: %w", id, p.name, types.ErrNotFound)
	}
	if obj.refs+obj.globalRefs <= 0 || obj.State() == types.ObjectDeinit {
		return nil, fmt.Errorf("object %s in %q: %w", id, p.name, types.ErrDead)
	}
	obj.refs++
	return obj, nil
}

// Lookup 按 ID 查找对象，不增加引用
func (p *Pool) Lookup(id types.ObjectID) (*Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	obj, ok := p.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s in %q: %w", id, p.name, types.ErrNotFound)
	}
	return obj, nil
}

// ============================================================================
// 生命周期
// ============================================================================

// Activate 激活对象，激活后才能分发消息
//
// 返回:
//   - error: 重复激活返回 types.ErrBusy
func (p *Pool) Activate(obj *Object) error {
	if !obj.state.CompareAndSwap(int32(types.ObjectInit), int32(types.ObjectActive)) {
		if obj.State() == types.ObjectActive {
			return fmt.Errorf("object %s: %w", obj.id, types.ErrBusy)
		}
		return fmt.Errorf("object %s: %w", obj.id, types.ErrDead)
	}
	logger.Debug("激活对象", "pool", p.name, "object", obj.id)
	return nil
}

// Ref 增加一个本地引用
func (p *Pool) Ref(obj *Object) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if obj.refs+obj.globalRefs <= 0 || obj.State() == types.ObjectDeinit {
		return fmt.Errorf("object %s: %w", obj.id, types.ErrDead)
	}
	obj.refs++
	return nil
}

// Unref 释放一个本地引用
//
// 本地与全局引用都归零时，对象从池中移除，运行类析构函数（zombie=false），
// 销毁其 Reactor 并归还共享内存。仍处于 Init 状态的对象只移除不析构。
func (p *Pool) Unref(obj *Object) error {
	p.mu.Lock()
	if obj.refs <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("object %s has no local reference: %w", obj.id, types.ErrInvalidArgument)
	}
	obj.refs--
	return p.releaseLocked(obj)
}

// Link 增加一个全局引用（对象被另一个共享对象持有）
func (p *Pool) Link(obj *Object) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if obj.refs+obj.globalRefs <= 0 || obj.State() == types.ObjectDeinit {
		return fmt.Errorf("object %s: %w", obj.id, types.ErrDead)
	}
	obj.globalRefs++
	return nil
}

// Unlink 释放一个全局引用
func (p *Pool) Unlink(obj *Object) error {
	p.mu.Lock()
	if obj.globalRefs-obj.thrownLocked() <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("object %s has no global reference: %w", obj.id, types.ErrInvalidArgument)
	}
	obj.globalRefs--
	return p.releaseLocked(obj)
}

// Throw 为 catcher 进程保留一个引用，直到它调用 Catch 或离开 World
func (p *Pool) Throw(obj *Object, catcher types.FusionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if obj.refs+obj.globalRefs <= 0 || obj.State() == types.ObjectDeinit {
		return fmt.Errorf("object %s: %w", obj.id, types.ErrDead)
	}
	if obj.thrown == nil {
		obj.thrown = make(map[types.FusionID]int)
	}
	obj.thrown[catcher]++
	obj.globalRefs++
	return nil
}

// Catch 在进程 proc 中接住抛来的引用：激活对象，保留的引用转为本地引用
//
// 返回:
//   - error: 没有抛给 proc 的引用返回 types.ErrAccessDenied；对象正在销毁返回 types.ErrDead
func (p *Pool) Catch(obj *Object, proc types.FusionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if obj.State() == types.ObjectDeinit {
		return fmt.Errorf("object %s: %w", obj.id, types.ErrDead)
	}
	if obj.thrown[proc] == 0 {
		return fmt.Errorf("object %s not thrown to %s: %w", obj.id, proc, types.ErrAccessDenied)
	}
	obj.thrown[proc]--
	if obj.thrown[proc] == 0 {
		delete(obj.thrown, proc)
	}
	obj.globalRefs--
	obj.refs++

	obj.state.CompareAndSwap(int32(types.ObjectInit), int32(types.ObjectActive))
	return nil
}

// thrownLocked 返回尚未被接住的引用数
func (o *Object) thrownLocked() int {
	n := 0
	for _, c := range o.thrown {
		n += c
	}
	return n
}

// releaseLocked 引用归零时销毁对象，调用前持有 p.mu，返回前释放
func (p *Pool) releaseLocked(obj *Object) error {
	if obj.refs+obj.globalRefs > 0 {
		p.mu.Unlock()
		return nil
	}

	if cur, ok := p.objects[obj.id]; !ok || cur != obj {
		p.mu.Unlock()
		return nil
	}

	if obj.State() == types.ObjectInit {
		delete(p.objects, obj.id)
		p.mu.Unlock()
		logger.Warn("不销毁未完成初始化的对象，部分内存将泄漏", "pool", p.name, "object", obj.id)
		return nil
	}

	// 析构期间对象仍留在表中，Get 返回 ErrDead
	obj.state.Store(int32(types.ObjectDeinit))
	p.mu.Unlock()

	err := p.finalize(obj, false)

	p.mu.Lock()
	if cur, ok := p.objects[obj.id]; ok && cur == obj {
		delete(p.objects, obj.id)
	}
	p.mu.Unlock()
	return err
}

// finalize 运行析构函数并释放对象资源
func (p *Pool) finalize(obj *Object, zombie bool) error {
	p.destructor(obj, zombie)

	var errs error
	if err := obj.Reactor.Destroy(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if p.props != nil {
		if _, err := p.props.Object(obj.id).Clear(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	p.shared.Arena().Free(obj.record)

	logger.Debug("销毁对象", "pool", p.name, "object", obj.id, "zombie", zombie)
	return errs
}

// ============================================================================
// 遍历与诊断
// ============================================================================

// Enumerate 按 ID 顺序遍历存活对象
//
// 遍历期间持有池锁，回调不得修改池。回调返回 false 时停止。
func (p *Pool) Enumerate(cb func(*Object) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, obj := range p.sortedLocked() {
		if !cb(obj) {
			return
		}
	}
}

// Dump 逐个输出存活对象的诊断信息
func (p *Pool) Dump(fn func(pkgif.ObjectInfo)) {
	p.mu.Lock()
	objs := p.sortedLocked()
	infos := make([]pkgif.ObjectInfo, 0, len(objs))
	for _, obj := range objs {
		infos = append(infos, obj.infoLocked())
	}
	p.mu.Unlock()

	for _, info := range infos {
		fn(info)
	}
}

func (p *Pool) sortedLocked() []*Object {
	objs := make([]*Object, 0, len(p.objects))
	for _, obj := range p.objects {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].id < objs[j].id })
	return objs
}

// ============================================================================
// 排空与销毁
// ============================================================================

// Drain 进入排空状态：拒绝新建对象，并通知每个存活对象
func (p *Pool) Drain() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	objs := p.sortedLocked()
	p.mu.Unlock()

	logger.Debug("排空对象池", "pool", p.name, "objects", len(objs))

	if p.onDrain == nil {
		return
	}
	for _, obj := range objs {
		p.onDrain(obj)
	}
}

// Draining 是否处于排空状态
func (p *Pool) Draining() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draining
}

// Destroy 销毁池
//
// 残留对象以僵尸身份析构（zombie=true）。幂等。
func (p *Pool) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.draining = true
	zombies := p.sortedLocked()
	infos := make([]pkgif.ObjectInfo, len(zombies))
	for i, obj := range zombies {
		infos[i] = obj.infoLocked()
		obj.state.Store(int32(types.ObjectDeinit))
	}
	p.objects = make(map[types.ObjectID]*Object)
	p.mu.Unlock()

	if p.cancelLeave != nil {
		p.cancelLeave()
	}
	p.shared.UnregisterPool(p.id)

	var errs error
	for i, obj := range zombies {
		if p.info {
			logger.Warn("僵尸对象",
				"pool", p.name,
				"object", obj.id,
				"refs", infos[i].Refs,
				"global_refs", infos[i].GlobalRefs,
				"creator", infos[i].Creator,
				"stack", infos[i].Stack)
		}
		errs = multierr.Append(errs, p.finalize(obj, true))
	}

	if len(zombies) > 0 {
		logger.Warn("对象池销毁时仍有残留对象", "pool", p.name, "zombies", len(zombies))
	}
	return errs
}

// processLeft 进程离开时撤销其对所有对象的所有权，并释放抛给它的引用
func (p *Pool) processLeft(id types.FusionID) {
	p.mu.Lock()
	objs := p.sortedLocked()
	p.mu.Unlock()

	for _, obj := range objs {
		obj.dropOwner(id)

		p.mu.Lock()
		n := obj.thrown[id]
		if n == 0 {
			p.mu.Unlock()
			continue
		}
		delete(obj.thrown, id)
		obj.globalRefs -= n
		if err := p.releaseLocked(obj); err != nil {
			logger.Warn("释放未接住的引用失败", "pool", p.name, "object", obj.id, "error", err)
		}
	}
}
