// Package logger 为命令行程序安装进程级日志
//
// Fusion 的组件通过 pkg/lib/log 获取 LazyLogger，每次调用都读取
// slog.Default()。本包按环境变量构造带组件级别过滤的 handler 并安装为默认：
//
//	FUSION_LOG_LEVEL=core/reactor=debug,transport/socket=warn,info
//	FUSION_LOG_FORMAT=json
//	FUSION_LOG_FILE=/var/log/fusiond.log
//
// 使用示例:
//
//	closer, err := logger.Setup(logger.ConfigFromEnv())
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

var (
	mu     sync.Mutex
	levels *levelTable
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup 按配置安装默认 logger
//
// 配置了日志文件时以追加方式打开，返回的 io.Closer 负责关闭它。
func Setup(cfg *Config) (io.Closer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		w, closer = f, f
	}

	Install(w, cfg)
	return closer, nil
}

// Install 把输出到 w 的组件 logger 安装为默认 logger
func Install(w io.Writer, cfg *Config) *slog.Logger {
	t := newLevelTable(cfg)

	mu.Lock()
	levels = t
	mu.Unlock()

	l := slog.New(newHandler(w, cfg, t))
	log.SetDefault(l)
	return l
}

// SetLevel 动态设置组件的日志级别，component 为空时设置默认级别
//
// 只对 Install 安装的 logger 生效。
func SetLevel(component string, level slog.Level) {
	mu.Lock()
	t := levels
	mu.Unlock()

	if t != nil {
		t.set(component, level)
	}
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
