// Package layer 实现显示层区域状态机
//
// 区域（Region）是图层上的一块显示区域，作为对象池中的共享对象存在。
// 区域把表面（Surface）的内容交给显示驱动（pkgif.LayerDriver），
// 并通过表面 Reactor 跟踪表面的更新、调色板与销毁。
//
// # 状态
//
//	               SetConfiguration
//	  (none) ─────────────────────────> Configured
//	                                       │
//	           Enable + Activate           ▼
//	  Configured ──────────────────> Realized（AddRegion + SetRegion）
//	                                       │
//	           Disable / Deactivate        ▼
//	  Realized ────────────────────> Frozen（RemoveRegion，释放缓冲）
//	                                       │
//	           FlipUpdate                  ▼
//	  Frozen ──────────────────────> 解冻，重新实现或重新下发配置
//
// 新区域不带 Frozen 标志；SetConfiguration 的 flags 含 types.ConfigFreeze
// （types.ConfigAll 也包含）时区域冻结，直到下一次翻转。
//
// # 表面监听
//
// SetSurface 在表面 Reactor 上挂接两类反应：
//   - ChannelEvent 上的事件监听：更新事件触发 FlipUpdate，销毁事件移除监听
//   - 通道 0 上的全局反应（SurfaceGlobals[SurfaceListenerIndex]）：
//     调色板、隔行场与 alpha 渐变表同步到驱动
//
// # 锁顺序
//
//	分发锁 -> 区域锁 -> 表面锁
//
// 区域锁内不挂接或撤销监听；释放缓冲的通知在区域锁释放后发出。
package layer
