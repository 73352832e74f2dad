package interfaces

// PropertyEngine 对象属性存储引擎
//
// 对象池把对象的附加属性（名称、用途标签、调试信息）保存在这里，
// 对象销毁时按前缀清除。键为不透明字节串，由调用方负责分区。
// 实现必须是并发安全的。
type PropertyEngine interface {
	// Get 返回值的副本，键不存在时返回的错误满足 errors.Is(err, types.ErrNotFound)
	Get(key []byte) ([]byte, error)

	// Put 写入或覆盖
	Put(key, value []byte) error

	// Delete 删除键，键不存在不是错误
	Delete(key []byte) error

	// Has 报告键是否存在
	Has(key []byte) (bool, error)

	// Close 关闭引擎，可重复调用
	Close() error
}
