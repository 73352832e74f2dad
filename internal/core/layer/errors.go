package layer

import "errors"

// ErrNotConfigured 区域尚未设置配置，无法在硬件上实现
var ErrNotConfigured = errors.New("layer: region not configured")
