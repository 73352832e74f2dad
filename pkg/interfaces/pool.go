package interfaces

import (
	"time"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// ObjectInfo 对象诊断信息
type ObjectInfo struct {
	ID         types.ObjectID
	Refs       int
	GlobalRefs int
	State      types.ObjectState
	Creator    types.FusionID
	Owners     []types.FusionID
	Created    time.Time
	Stack      string
}

// ObjectPool 对象池的最小视图
//
// World 的池注册表与关闭流程只依赖本接口。
type ObjectPool interface {
	// ID 返回池 ID
	ID() types.PoolID

	// Name 返回池名称
	Name() string

	// Size 返回存活对象数
	Size() int

	// Drain 进入排空状态：拒绝新建对象，并通知每个存活对象
	Drain()

	// Dump 逐个输出存活对象的诊断信息
	Dump(fn func(ObjectInfo))

	// Destroy 销毁池，残留对象以僵尸身份析构
	Destroy() error
}
