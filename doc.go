// Package fusion 提供多进程共享会话的 Reactor、对象池与显示层区域
//
// 一个 World 是多个进程共享的会话：一块共享内存区、进程注册表，
// 以及在其上运行的 Reactor 消息分发和引用计数对象池。
//
// # 核心概念
//
//   - World: 共享段 + 本进程身份，第一个加入的进程是 Master
//   - Reactor: 按通道分发定长消息，本地监听者按附加的逆序收到消息，
//     远端进程经由分发传输收到一份副本
//   - ObjectPool: 引用计数对象，引用归零时由池的析构函数回收
//   - Layer/Region: 显示层区域的状态机，把表面的内容交给驱动显示
//
// # 快速开始
//
//	rt, err := fusion.Start(ctx,
//	    fusion.WithPreset("master"),
//	    fusion.WithLayerDriver(myDriver),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	r, err := rt.NewReactor(64, "input events")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Destroy()
//
// # 组件层次
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│  Runtime      fusion.New() / fusion.Start()                     │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Layer        区域状态机、表面监听、翻转                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│  ObjPool      引用计数对象  │  Shutdown   排空、等待、终止        │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Reactor      通道、监听者、全局反应、分发锁                      │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Transport    privileged / socket / local                       │
//	├─────────────────────────────────────────────────────────────────┤
//	│  World        共享内存区、进程注册表、引用令牌                    │
//	└─────────────────────────────────────────────────────────────────┘
//
// # 关闭
//
// Master 调用 Runtime.Shutdown 关闭整个 World：所有对象池进入排空状态，
// 在配置的预算内等待对象归零，销毁残留对象池，再依次以 SIGTERM、SIGKILL
// 终止其余进程。非 Master 只能 Close 离开 World。
//
// # 文件组织
//
//   - fusion.go: Runtime 与版本信息
//   - options.go: 配置选项
//   - fx.go: Fx 模块组装
//   - errors.go: 公共错误
package fusion
