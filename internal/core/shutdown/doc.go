// Package shutdown 实现 World 的有界排空与关闭
//
// # 快速开始
//
//	c := shutdown.NewCoordinator(w, cfg.Shutdown)
//	if err := c.Shutdown(ctx, false); errors.Is(err, types.ErrTimeout) {
//	    // 残留对象已按僵尸析构
//	}
//
// # 阶段
//
//	running ─> draining ─> waiting ─> destroying ─> killing ─> done
//
//   - draining: 所有已登记对象池拒绝新建对象，运行排空钩子
//   - waiting: Iterations 轮 WaitAll(Step)，轮询 Size() 直到全部归零
//   - destroying: 销毁对象池，残留对象以 zombie=true 析构；Info 开启时
//     超时前先输出每个残留对象的引用数、状态、创建者与创建栈
//   - killing: 并发终止其余进程；正常 SIGTERM 后 SIGKILL，紧急直接 SIGKILL
//
// 紧急关闭跳过 draining 与 waiting。
//
// # 并发安全
//
// Coordinator 的所有方法可并发调用，Shutdown 只执行一次。
package shutdown
