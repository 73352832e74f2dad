// Package kv 按对象池、对象划分属性键空间
//
// 键布局：
//
//	<root>/<pool>/<object>/<name>
//
// pool 与 object 以定宽十六进制编码，同一对象的属性在引擎中相邻，
// 销毁对象只需一次前缀删除。
package kv

import (
	"fmt"

	"github.com/directfb2/DirectFB2-sub002/internal/core/storage/engine"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// Store 键空间中的一个前缀
type Store struct {
	engine engine.InternalEngine
	prefix []byte
}

// New 创建根前缀为 prefix 的 Store
func New(eng engine.InternalEngine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

// Pool 返回单个对象池的子空间
func (s *Store) Pool(id types.PoolID) *Store {
	return s.sub(uint32(id))
}

// Object 返回单个对象的子空间
func (s *Store) Object(id types.ObjectID) *Store {
	return s.sub(uint32(id))
}

func (s *Store) sub(id uint32) *Store {
	p := append([]byte(nil), s.prefix...)
	return &Store{engine: s.engine, prefix: fmt.Appendf(p, "%08x/", id)}
}

func (s *Store) key(name string) []byte {
	k := make([]byte, len(s.prefix)+len(name))
	copy(k, s.prefix)
	copy(k[len(s.prefix):], name)
	return k
}

// Get 读取属性
func (s *Store) Get(name string) ([]byte, error) {
	return s.engine.Get(s.key(name))
}

// Put 写入属性
func (s *Store) Put(name string, value []byte) error {
	return s.engine.Put(s.key(name), value)
}

// Delete 删除属性
func (s *Store) Delete(name string) error {
	return s.engine.Delete(s.key(name))
}

// Has 报告属性是否存在
func (s *Store) Has(name string) (bool, error) {
	return s.engine.Has(s.key(name))
}

// Names 返回本空间下的全部键（相对本前缀，按字节序）
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.engine.Scan(s.prefix, func(key, _ []byte) bool {
		names = append(names, string(key[len(s.prefix):]))
		return true
	})
	return names, err
}

// Clear 删除本空间下的全部键
func (s *Store) Clear() (int, error) {
	return s.engine.DeletePrefix(s.prefix)
}

// Prefix 返回本空间的完整前缀
func (s *Store) Prefix() []byte {
	return s.prefix
}
