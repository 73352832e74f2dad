// Package interfaces 定义 Fusion 的公共接口
//
// 一个接口文件对应一个（或一组）实现目录：
//
//   - world.go      - World 进程句柄（共享内存分配、进程身份、根对象）
//   - transport.go  - 分发传输（privileged/socket/local 三种实现）
//   - pool.go       - 对象池（关闭流程与诊断使用的最小视图）
//   - layer.go      - 显示层驱动（LayerRegion 的外部协作者）
//   - storage.go    - 属性存储引擎（BadgerDB）
//
// # 依赖方向
//
//	root → layer/region → objpool → reactor → transport → world
//
// 禁止反向依赖。
package interfaces
