package logger

import (
	"log/slog"
	"os"
	"strings"
)

// 环境变量
const (
	// EnvLevel 日志级别，格式: 组件=级别,组件=级别,默认级别
	// 示例: core/reactor=debug,transport/socket=warn,info
	EnvLevel = "FUSION_LOG_LEVEL"

	// EnvFormat 日志格式 (text 或 json)
	EnvFormat = "FUSION_LOG_FORMAT"

	// EnvAddSource 是否输出源码位置
	EnvAddSource = "FUSION_LOG_ADD_SOURCE"

	// EnvFile 日志文件路径，为空时输出到 stderr
	EnvFile = "FUSION_LOG_FILE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别，键为 log.Logger 的组件名
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool

	// File 日志文件路径
	File string
}

// DefaultConfig 返回默认日志配置：info 级别文本输出到 stderr
func DefaultConfig() *Config {
	return &Config{
		DefaultLevel:    slog.LevelInfo,
		ComponentLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
}

// LevelFor 获取指定组件的日志级别
func (c *Config) LevelFor(component string) slog.Level {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	return c.DefaultLevel
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() *Config {
	return configFrom(os.Getenv)
}

func configFrom(getenv func(string) string) *Config {
	cfg := DefaultConfig()

	if levelStr := getenv(EnvLevel); levelStr != "" {
		parseLevelConfig(cfg, levelStr)
	}

	if strings.EqualFold(getenv(EnvFormat), "json") {
		cfg.Format = FormatJSON
	}

	if v := getenv(EnvAddSource); v != "" {
		cfg.AddSource = v != "false" && v != "0"
	}

	cfg.File = getenv(EnvFile)
	return cfg
}

// parseLevelConfig 解析日志级别配置字符串
func parseLevelConfig(cfg *Config, levelStr string) {
	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, levelName, ok := strings.Cut(part, "=")
		if !ok {
			if level, ok := parseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := parseLevel(strings.TrimSpace(levelName)); ok {
			cfg.ComponentLevels[strings.TrimSpace(component)] = level
		}
	}
}

// parseLevel 解析日志级别名称
func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
