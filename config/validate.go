package config

import (
	"errors"
	"fmt"
	"time"
)

var errReactorExceedsTransport = errors.New("reactor: max_message_size exceeds transport max_message_size")

// crossCheck 跨子配置的约束
func (c *Config) crossCheck() error {
	if c.Reactor.MaxMessageSize > c.Transport.MaxMessageSize {
		return errReactorExceedsTransport
	}
	return nil
}

// Normalize 把可以安全修正的字段收敛到合法范围
//
// 修正项：
//   - Reactor 消息上限超过传输上限时截断到传输上限
//   - 默认消息大小超过 Reactor 上限时截断
//   - 轮询间隔大于单轮等待时使用单轮等待
//   - 轮数或接收超时为零时恢复默认值
//
// 返回每一项修正的说明，调用方可以记录日志；修正后仍不合法时返回错误。
func Normalize(c *Config) ([]string, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}

	var fixes []string
	fix := func(format string, args ...any) {
		fixes = append(fixes, fmt.Sprintf(format, args...))
	}

	if c.Reactor.MaxMessageSize > c.Transport.MaxMessageSize {
		fix("reactor.max_message_size %d -> %d", c.Reactor.MaxMessageSize, c.Transport.MaxMessageSize)
		c.Reactor.MaxMessageSize = c.Transport.MaxMessageSize
	}
	if c.Reactor.MessageSize > c.Reactor.MaxMessageSize {
		fix("reactor.message_size %d -> %d", c.Reactor.MessageSize, c.Reactor.MaxMessageSize)
		c.Reactor.MessageSize = c.Reactor.MaxMessageSize
	}
	if c.Shutdown.PollInterval > c.Shutdown.Step {
		fix("shutdown.poll_interval %s -> %s", c.Shutdown.PollInterval, c.Shutdown.Step)
		c.Shutdown.PollInterval = c.Shutdown.Step
	}
	if c.Shutdown.Iterations < 1 {
		def := DefaultShutdownConfig().Iterations
		fix("shutdown.iterations %d -> %d", c.Shutdown.Iterations, def)
		c.Shutdown.Iterations = def
	}
	if c.Transport.ReceiveTimeout <= 0 {
		def := Duration(100 * time.Millisecond)
		fix("transport.receive_timeout %s -> %s", c.Transport.ReceiveTimeout, def)
		c.Transport.ReceiveTimeout = def
	}

	if err := c.Validate(); err != nil {
		return fixes, fmt.Errorf("config still invalid after normalize: %w", err)
	}
	return fixes, nil
}
