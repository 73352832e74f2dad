// Package storage 提供对象属性存储
//
// 基于 BadgerDB，默认内存模式。objpool 把每个对象的属性保存在
// fusion/objects/<pool>/<object>/ 前缀下，对象销毁时整体删除。
//
// # 架构
//
//	┌──────────────────────────────────────┐
//	│  objpool（对象属性）                  │
//	└──────────────────────────────────────┘
//	                  │
//	                  ▼
//	┌──────────────────────────────────────┐
//	│  kv.Store      带前缀隔离的 KV 抽象   │
//	│  engine/badger BadgerDB 实现          │
//	└──────────────────────────────────────┘
//
// # 使用示例
//
//	eng, err := storage.NewMemory()
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//	obj := storage.Properties(eng).Pool(poolID).Object(objID)
//	_ = obj.Put("title", []byte("desktop"))
//
// # 并发安全
//
// 引擎与 KVStore 可以被多个 goroutine 同时使用。
package storage
