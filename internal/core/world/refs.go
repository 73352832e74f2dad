package world

import (
	"sync"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

// RefToken 跨进程引用令牌
//
// 分发方创建令牌（计数 1），传输层在每次投递前为每个接收方加一，
// 接收方处理完成后减一，分发方在扇出结束后减一。
// 计数归零时执行一次归零回调。
type RefToken = types.RefToken

// RefNone 无令牌
const RefNone = types.RefNone

type refEntry struct {
	count  int
	onZero func()
}

// RefTable 引用令牌表
type RefTable struct {
	mu   sync.Mutex
	next RefToken
	refs map[RefToken]*refEntry
}

func newRefTable() *RefTable {
	return &RefTable{refs: make(map[RefToken]*refEntry)}
}

// Create 创建令牌，初始计数为 1
func (t *RefTable) Create(onZero func()) RefToken {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		t.next++
		if t.next == RefNone {
			continue
		}
		if _, exists := t.refs[t.next]; !exists {
			break
		}
	}
	t.refs[t.next] = &refEntry{count: 1, onZero: onZero}
	return t.next
}

// Up 计数加一
func (t *RefTable) Up(tok RefToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.refs[tok]
	if !ok {
		return ErrUnknownRef
	}
	e.count++
	return nil
}

// Down 计数减一，归零时删除令牌并执行回调
func (t *RefTable) Down(tok RefToken) error {
	t.mu.Lock()
	e, ok := t.refs[tok]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownRef
	}
	e.count--
	if e.count > 0 {
		t.mu.Unlock()
		return nil
	}
	delete(t.refs, tok)
	t.mu.Unlock()

	if e.onZero != nil {
		e.onZero()
	}
	return nil
}

// Count 返回当前计数
func (t *RefTable) Count(tok RefToken) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.refs[tok]
	if !ok {
		return 0, false
	}
	return e.count, true
}

// Len 返回存活令牌数
func (t *RefTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}
