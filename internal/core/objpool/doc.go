// Package objpool 实现引用计数的共享对象池
//
// 对象池为某一类共享对象（表面、窗口、图层区域等）分配 ID、维护引用计数，
// 并在引用归零时运行类析构函数。每个对象内嵌一个 Reactor，激活后才能
// 向其他进程广播状态变化。
//
// # 快速开始
//
//	pool, _ := objpool.New(shared, "surfaces", 64, 16, func(obj *objpool.Object, zombie bool) {
//	    // 释放类私有资源
//	})
//
//	obj, _ := pool.Create(proc)
//	_ = pool.Activate(obj)
//	_ = obj.Dispatch(proc, 1, []byte("changed"), true, nil)
//	_ = pool.Unref(obj) // 引用归零，运行析构函数
//
// # 生命周期
//
//	Create ──> Init ──Activate──> Active ──refs=0──> Deinit ──> 移除
//	             │
//	             └──refs=0──> 移除（不析构，记录告警）
//
// 本地引用（Ref/Unref）与全局引用（Link/Unlink）分别计数，任一不为零
// 对象都保持存活。
//
// # 关闭
//
// Drain 让池拒绝新建对象；关闭流程轮询 Size() 直到归零或超时，随后
// Destroy 以 zombie=true 析构残留对象。
//
// # 并发安全
//
//   - 引用计数与对象表受池锁保护
//   - 析构函数在池锁之外运行，析构期间 Get 返回 types.ErrDead
//   - Enumerate 回调在池锁内运行，不得修改池
package objpool
