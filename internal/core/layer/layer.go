package layer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/directfb2/DirectFB2-sub002/internal/core/objpool"
	"github.com/directfb2/DirectFB2-sub002/internal/core/reactor"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("core/layer")

// regionRecordSize 区域在共享内存区中的记录大小
const regionRecordSize = 96

// Caps 图层能力
type Caps struct {
	// AlphaRamp 支持 alpha 渐变表
	AlphaRamp bool
}

// Layer 显示层
//
// 图层持有驱动与区域对象池，记录已在硬件上实现的区域。
type Layer struct {
	id     int
	driver pkgif.LayerDriver
	caps   Caps
	proc   *reactor.Process
	pool   *objpool.Pool

	mu      sync.Mutex
	regions map[types.ObjectID]*Region
	added   []*Region
}

// NewLayer 创建图层及其区域对象池
func NewLayer(f *objpool.Factory, proc *reactor.Process, id int, driver pkgif.LayerDriver, caps Caps) (*Layer, error) {
	if driver == nil {
		return nil, fmt.Errorf("layer %d without driver: %w", id, types.ErrInvalidArgument)
	}

	l := &Layer{
		id:      id,
		driver:  driver,
		caps:    caps,
		proc:    proc,
		regions: make(map[types.ObjectID]*Region),
	}

	pool, err := f.NewPool(fmt.Sprintf("Layer Region Pool %d", id), regionRecordSize, messageSize, l.destructRegion)
	if err != nil {
		return nil, fmt.Errorf("create layer %d: %w", id, err)
	}
	l.pool = pool

	logger.Debug("创建图层", "layer", id, "pool", pool.ID(), "alpha_ramp", caps.AlphaRamp)
	return l, nil
}

// ID 返回图层 ID
func (l *Layer) ID() int {
	return l.id
}

// Driver 返回图层驱动
func (l *Layer) Driver() pkgif.LayerDriver {
	return l.driver
}

// Caps 返回图层能力
func (l *Layer) Caps() Caps {
	return l.caps
}

// Pool 返回区域对象池
func (l *Layer) Pool() *objpool.Pool {
	return l.pool
}

// CreateRegion 创建并激活区域
//
// 新区域不带任何状态标志，需 SetConfiguration 后经 Enable/Activate 实现。
func (l *Layer) CreateRegion() (*Region, error) {
	obj, err := l.pool.Create(l.proc)
	if err != nil {
		return nil, fmt.Errorf("create region on layer %d: %w", l.id, err)
	}

	r := &Region{layer: l, obj: obj}

	// 区域对象的全局反应与区域状态共用一把锁
	if l.proc.Transport().Capabilities().SwappableLock {
		if err := obj.SetLockOnly(&r.mu); err != nil {
			_ = l.pool.Unref(obj)
			return nil, fmt.Errorf("create region on layer %d: %w", l.id, err)
		}
	}

	l.mu.Lock()
	l.regions[obj.ID()] = r
	l.mu.Unlock()

	if err := l.pool.Activate(obj); err != nil {
		l.mu.Lock()
		delete(l.regions, obj.ID())
		l.mu.Unlock()
		_ = l.pool.Unref(obj)
		return nil, err
	}

	logger.Debug("创建区域", "layer", l.id, "region", obj.ID())
	return r, nil
}

// Regions 返回存活区域，按 ID 排序
func (l *Layer) Regions() []*Region {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Region, 0, len(l.regions))
	for _, r := range l.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AddedRegions 返回已在硬件上实现的区域，按实现顺序
func (l *Layer) AddedRegions() []*Region {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Region(nil), l.added...)
}

// Close 销毁区域对象池，残留区域按僵尸析构
func (l *Layer) Close() error {
	return l.pool.Destroy()
}

func (l *Layer) addRealized(r *Region) {
	l.mu.Lock()
	l.added = append(l.added, r)
	l.mu.Unlock()
}

func (l *Layer) removeRealized(r *Region) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, cur := range l.added {
		if cur == r {
			l.added = append(l.added[:i], l.added[i+1:]...)
			return
		}
	}
}

// destructRegion 区域类析构函数
func (l *Layer) destructRegion(obj *objpool.Object, zombie bool) {
	l.mu.Lock()
	r := l.regions[obj.ID()]
	delete(l.regions, obj.ID())
	l.mu.Unlock()

	if r == nil {
		return
	}
	if zombie {
		logger.Warn("析构残留区域", "layer", l.id, "region", obj.ID(), "state", r.State())
	}
	r.destruct()
}
