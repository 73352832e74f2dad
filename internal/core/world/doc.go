// Package world 实现多进程共享会话（World）
//
// World 由两部分组成：
//   - Shared: 共享段。包含共享内存区记账、进程注册表、根对象、
//     引用令牌表、对象池注册表，以及各传输后端的共享扩展槽。
//   - World: 进程本地句柄。携带进程身份（FusionID），
//     所有入口通过它访问共享段，不存在进程级全局变量。
//
// # 快速开始
//
//	shared := world.NewShared(cfg.World)
//	master, _ := world.Enter(shared, cfg.World)   // FusionID 1
//	slave, _ := world.Enter(shared, cfg.World)    // FusionID 2
//	defer slave.Leave()
//
//	buf, err := master.AllocateShared(128)
//	defer master.FreeShared(buf)
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：config, pkg/types
//   - 被依赖：reactor, transport, objpool, shutdown
//
// # 并发安全
//
// Shared 的所有可变状态由其互斥锁保护；共享内存区有独立的锁；
// 引用令牌表有独立的锁，归零回调在锁外执行。
package world
