package objpool

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage"
	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/kv"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// Object 池中的共享对象
//
// 每个对象带有一个 Reactor，用于向其他进程广播自身状态变化。
// refs/globalRefs 受所属池的锁保护，owners/access 受对象自身的锁保护。
type Object struct {
	*reactor.Reactor

	id      types.ObjectID
	pool    *Pool
	record  []byte
	state   atomic.Int32
	creator types.FusionID
	created time.Time
	stack   string

	refs       int
	globalRefs int
	thrown     map[types.FusionID]int // 计入 globalRefs，等待接收进程 Catch

	mu     sync.Mutex
	owners []types.FusionID
	access []string
}

// ID 返回对象 ID
func (o *Object) ID() types.ObjectID {
	return o.id
}

// Pool 返回所属池
func (o *Object) Pool() *Pool {
	return o.pool
}

// State 返回生命周期状态
func (o *Object) State() types.ObjectState {
	return types.ObjectState(o.state.Load())
}

// Creator 返回创建进程
func (o *Object) Creator() types.FusionID {
	return o.creator
}

// Record 返回对象在共享内存区中的记录
func (o *Object) Record() []byte {
	return o.record
}

// Refs 返回本地与全局引用数
func (o *Object) Refs() (local, global int) {
	o.pool.mu.Lock()
	defer o.pool.mu.Unlock()
	return o.refs, o.globalRefs
}

// Dispatch 通过对象的 Reactor 分发消息
//
// 返回:
//   - error: 对象尚未激活返回 types.ErrNotActive
func (o *Object) Dispatch(p *reactor.Process, ch types.Channel, msg []byte, self bool, globals []reactor.GlobalFunc) error {
	switch o.State() {
	case types.ObjectInit:
		return fmt.Errorf("object %s: %w", o.id, types.ErrNotActive)
	case types.ObjectDeinit:
		return fmt.Errorf("object %s: %w", o.id, types.ErrDead)
	}
	return o.Reactor.Dispatch(p, ch, msg, self, globals)
}

// ============================================================================
// 分发锁
// ============================================================================

// SetLock 把 l 绑定为对象 Reactor 的全局反应锁（先获取旧锁再替换）
//
// 返回:
//   - error: 对象已激活返回 types.ErrBusy；正在销毁返回 types.ErrDead
func (o *Object) SetLock(l sync.Locker) error {
	if err := o.checkInit(); err != nil {
		return err
	}
	return o.Reactor.SetDispatchLock(l)
}

// SetLockOnly 同 SetLock，但不获取旧锁
func (o *Object) SetLockOnly(l sync.Locker) error {
	if err := o.checkInit(); err != nil {
		return err
	}
	return o.Reactor.SetDispatchLockOnly(l)
}

func (o *Object) checkInit() error {
	switch o.State() {
	case types.ObjectActive:
		return fmt.Errorf("object %s already active: %w", o.id, types.ErrBusy)
	case types.ObjectDeinit:
		return fmt.Errorf("object %s: %w", o.id, types.ErrDead)
	}
	return nil
}

func (o *Object) infoLocked() pkgif.ObjectInfo {
	o.mu.Lock()
	owners := append([]types.FusionID(nil), o.owners...)
	o.mu.Unlock()

	return pkgif.ObjectInfo{
		ID:         o.id,
		Refs:       o.refs,
		GlobalRefs: o.globalRefs,
		State:      o.State(),
		Creator:    o.creator,
		Owners:     owners,
		Created:    o.created,
		Stack:      o.stack,
	}
}

// ============================================================================
// 属性
// ============================================================================

func (o *Object) properties(key string) (*kv.Store, error) {
	if key == "" {
		return nil, fmt.Errorf("empty property key: %w", types.ErrInvalidArgument)
	}
	if o.pool.props == nil {
		return nil, fmt.Errorf("pool %q has no property store: %w", o.pool.name, types.ErrUnsupported)
	}
	return o.pool.props.Object(o.id), nil
}

// SetProperty 设置属性
func (o *Object) SetProperty(key string, value []byte) error {
	props, err := o.properties(key)
	if err != nil {
		return err
	}
	return props.Put(key, value)
}

// GetProperty 读取属性
//
// 返回:
//   - error: 属性不存在返回 types.ErrNotFound
func (o *Object) GetProperty(key string) ([]byte, error) {
	props, err := o.properties(key)
	if err != nil {
		return nil, err
	}
	v, err := props.Get(key)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("property %q: %w", key, types.ErrNotFound)
	}
	return v, err
}

// RemoveProperty 删除属性，返回旧值
func (o *Object) RemoveProperty(key string) ([]byte, error) {
	old, err := o.GetProperty(key)
	if err != nil {
		return nil, err
	}
	props, _ := o.properties(key)
	if err := props.Delete(key); err != nil {
		return nil, err
	}
	return old, nil
}

// ============================================================================
// 所有者与访问控制
// ============================================================================

// AddOwner 添加所有者进程，重复添加无副作用
func (o *Object) AddOwner(id types.FusionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, owner := range o.owners {
		if owner == id {
			return
		}
	}
	o.owners = append(o.owners, id)
}

// CheckOwner 检查进程是否为所有者
//
// succeedIfNotOwned 为 true 时，没有任何所有者的对象对所有进程开放。
//
// 返回:
//   - error: 非所有者返回 types.ErrAccessDenied
func (o *Object) CheckOwner(id types.FusionID, succeedIfNotOwned bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if succeedIfNotOwned && len(o.owners) == 0 {
		return nil
	}
	for _, owner := range o.owners {
		if owner == id {
			return nil
		}
	}
	return fmt.Errorf("process %s does not own object %s: %w", id, o.id, types.ErrAccessDenied)
}

func (o *Object) dropOwner(id types.FusionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, owner := range o.owners {
		if owner == id {
			o.owners = append(o.owners[:i], o.owners[i+1:]...)
			return
		}
	}
}

// AddAccess 允许可执行文件访问对象
//
// 以 '*' 结尾的条目按前缀匹配。
func (o *Object) AddAccess(executable string) error {
	if executable == "" {
		return fmt.Errorf("empty executable: %w", types.ErrInvalidArgument)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.access = append(o.access, executable)
	return nil
}

// HasAccess 检查可执行文件是否可访问对象
//
// 返回:
//   - error: 无匹配条目返回 types.ErrAccessDenied
func (o *Object) HasAccess(executable string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, entry := range o.access {
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			if strings.HasPrefix(executable, prefix) {
				return nil
			}
		} else if entry == executable {
			return nil
		}
	}
	return fmt.Errorf("%q on object %s: %w", executable, o.id, types.ErrAccessDenied)
}

// Inherit 从同池的另一个对象复制所有者与访问条目
func (o *Object) Inherit(from *Object) error {
	if from == nil || from.pool != o.pool {
		return fmt.Errorf("inherit across pools: %w", types.ErrInvalidArgument)
	}
	if from == o {
		return nil
	}

	from.mu.Lock()
	owners := append([]types.FusionID(nil), from.owners...)
	access := append([]string(nil), from.access...)
	from.mu.Unlock()

	for _, id := range owners {
		o.AddOwner(id)
	}
	o.mu.Lock()
	o.access = append(o.access, access...)
	o.mu.Unlock()
	return nil
}
