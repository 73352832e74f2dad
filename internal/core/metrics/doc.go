// Package metrics 提供 Fusion 运行指标
//
// 两部分组成：
//
//   - RateMeter：60 秒滑动窗口的速率计算器，reactor 用它统计分发字节速率
//   - Collector：Prometheus 采集器，采集时读取对象池大小、分发计数与共享内存区用量
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector("fusion", shared, proc, shared))
//
// # 并发安全
//
// RateMeter 与 Collector 都可以被多个 goroutine 同时使用。
package metrics
