// Package log 提供 Fusion 统一日志接口
//
// 组件在包级声明 LazyLogger，每次调用都读取当前的 slog.Default()，
// 命令行程序可以在启动后再安装 handler。热路径上的告警使用 Throttled。
//
//	var logger = log.Logger("core/reactor")
//	logger.Debug("attach", "reactor", id, "channel", ch)
package log

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// componentKey 组件属性名
const componentKey = "component"

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return slog.Default()
}

// New 创建文本格式 logger
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 不缓存 handler，运行时切换默认 logger 对已声明的 LazyLogger 立即生效。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) current() *slog.Logger {
	return slog.Default().With(componentKey, l.component)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.current().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.current().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.current().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.current().Error(msg, args...)
}

// With 返回附加了属性的 slog.Logger（绑定当前默认 handler）
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.current().With(args...)
}

// ============================================================================
//                              ThrottledLogger
// ============================================================================

// ThrottledLogger 限流 logger
//
// 按令牌桶限制输出频率，被抑制的条数在下一次输出时以 "suppressed" 属性附带。
// 用于分发热路径上的软校验告警。
type ThrottledLogger struct {
	base       *LazyLogger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// Throttled 返回限流 logger
//
// 参数:
//   - component: 组件名
//   - every: 两次输出之间的最小间隔
//   - burst: 突发容量
func Throttled(component string, every time.Duration, burst int) *ThrottledLogger {
	return &ThrottledLogger{
		base:    Logger(component),
		limiter: rate.NewLimiter(rate.Every(every), burst),
	}
}

// Warn 输出 Warn 级别日志（受限流）
func (l *ThrottledLogger) Warn(msg string, args ...any) {
	if args, ok := l.admit(args); ok {
		l.base.Warn(msg, args...)
	}
}

// Error 输出 Error 级别日志（受限流）
func (l *ThrottledLogger) Error(msg string, args ...any) {
	if args, ok := l.admit(args); ok {
		l.base.Error(msg, args...)
	}
}

// admit 取令牌；放行时附带此前被抑制的条数
func (l *ThrottledLogger) admit(args []any) ([]any, bool) {
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return nil, false
	}
	if n := l.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	return args, true
}

// Suppressed 返回当前被抑制的日志条数
func (l *ThrottledLogger) Suppressed() int64 {
	return l.suppressed.Load()
}
