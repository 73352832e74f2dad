// Package types 定义 Fusion 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go      - FusionID, ObjectID, ReactorID, PoolID, Channel
//   - enums.go    - ReactionResult, ObjectState, MessageType
//   - errors.go   - 公共错误定义
//
// # ID 类型
//
//   - FusionID  - 进程在 World 中的身份（Master 固定为 1）
//   - ObjectID  - 对象在所属 Pool 中的唯一标识（跨进程一致）
//   - ReactorID - Reactor 在 World 中的唯一标识
//   - PoolID    - Pool 在 World 中的唯一标识
package types
