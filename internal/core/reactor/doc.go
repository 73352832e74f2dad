// Package reactor 实现跨进程发布/订阅端点
//
// Reactor 让进程观察自己并不拥有的对象的状态变化。每个 Reactor 有若干
// 通道；进程在通道上挂接监听（Reaction），分发方把消息扇出到所有订阅了
// 该通道的进程。通道 0 另外承载只在分发进程内执行的全局反应。
//
// # 快速开始
//
//	proc := reactor.NewProcess(w, transport, cfg.Reactor, cfg.Transport.MaxMessageSize)
//	_ = proc.Start()
//
//	r, _ := reactor.New(proc, 16, "surface")
//	re, _ := r.Attach(proc, 1, func(msg []byte, ctx any) types.ReactionResult {
//	    return types.RSOK
//	}, nil)
//	_ = r.Dispatch(proc, 1, []byte("changed"), true, nil)
//	_ = r.Detach(re)
//
// # 架构定位
//
//	┌──────────────────────────────────────────────┐
//	│          objpool / layer/region              │
//	└──────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌──────────────────────────────────────────────┐
//	│   reactor (本包)                             │
//	│   Reactor ── Process ── Node ── link         │
//	└──────────────────────────────────────────────┘
//	                     │ pkgif.Transport
//	                     ▼
//	┌──────────────────────────────────────────────┐
//	│   transport/privileged | socket | local      │
//	└──────────────────────────────────────────────┘
//
// # 监听缓存
//
// 每个进程为每个 Reactor 维护一个 Node，同一通道上的多个本地监听只对应
// 一次远端订阅。撤销监听不会立即摘除 link，而是先清空其 reaction 引用
// （墓碑），由下一个持有 Node 写锁的调用者统一摘除。分发只持有读锁，
// 从不需要把读锁升级为写锁。
//
// # 并发安全
//
//   - Attach/Detach 持有 Node 写锁，Dispatch 的本地投递只在复制 link 时持有读锁
//   - 反应函数在 Node 锁外执行，可以在同一 Reactor 上重入 Dispatch 或 Attach
//   - Detach 返回前等待该监听正在执行的调用结束，监听不得 Detach 自身
//   - 进程 Node 表锁不会在阻塞等待 Node 锁时持有
//   - 全局反应列表只在可替换的分发锁下修改
package reactor
