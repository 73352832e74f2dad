package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// componentKey log.Logger 附加的组件属性名
const componentKey = "component"

// levelTable 各组件的当前级别，所有派生 handler 共享
type levelTable struct {
	mu         sync.RWMutex
	def        slog.Level
	components map[string]slog.Level
}

func newLevelTable(cfg *Config) *levelTable {
	t := &levelTable{def: cfg.DefaultLevel, components: make(map[string]slog.Level, len(cfg.ComponentLevels))}
	for k, v := range cfg.ComponentLevels {
		t.components[k] = v
	}
	return t
}

func (t *levelTable) level(component string) slog.Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if l, ok := t.components[component]; ok {
		return l
	}
	return t.def
}

func (t *levelTable) set(component string, level slog.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if component == "" {
		t.def = level
		return
	}
	t.components[component] = level
}

// componentHandler 按组件过滤级别的 slog.Handler
//
// 组件名取自 WithAttrs 中的 component 属性，log.LazyLogger 每次调用都会附加它。
type componentHandler struct {
	component string
	levels    *levelTable
	inner     slog.Handler
}

// newHandler 创建组件 Handler
func newHandler(w io.Writer, cfg *Config, levels *levelTable) slog.Handler {
	opts := &slog.HandlerOptions{
		// 过滤在 componentHandler 中完成
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return &componentHandler{levels: levels, inner: inner}
}

// Enabled 检查是否启用指定级别
func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.levels.level(h.component)
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性，遇到 component 属性时切换到该组件的级别
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == componentKey {
			component = a.Value.String()
		}
	}
	return &componentHandler{component: component, levels: h.levels, inner: h.inner.WithAttrs(attrs)}
}

// WithGroup 添加组
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{component: h.component, levels: h.levels, inner: h.inner.WithGroup(name)}
}

// levelToString 将日志级别转换为小写字符串
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// discardHandler 丢弃所有日志的 Handler
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
