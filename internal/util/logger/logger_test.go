package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
)

// restoreDefault 测试结束后恢复默认 logger
func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { log.SetDefault(prev) })
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		EnvLevel:     "core/reactor=debug, transport/socket=warn ,error,bogus=loud",
		EnvFormat:    "JSON",
		EnvAddSource: "1",
		EnvFile:      "/tmp/fusiond.log",
	}
	cfg := configFrom(func(k string) string { return env[k] })

	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelFor("core/reactor"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelFor("transport/socket"))
	assert.Equal(t, slog.LevelError, cfg.LevelFor("core/layer"))
	assert.NotContains(t, cfg.ComponentLevels, "bogus")
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
	assert.Equal(t, "/tmp/fusiond.log", cfg.File)

	t.Log("✅ 环境变量解析测试通过")
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := configFrom(func(string) string { return "" })

	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Empty(t, cfg.ComponentLevels)
	assert.Equal(t, FormatText, cfg.Format)
	assert.False(t, cfg.AddSource)
	assert.Empty(t, cfg.File)

	t.Log("✅ 默认配置测试通过")
}

func TestInstall_ComponentLevels(t *testing.T) {
	restoreDefault(t)

	cfg := DefaultConfig()
	cfg.ComponentLevels["core/reactor"] = slog.LevelDebug

	buf := &bytes.Buffer{}
	Install(buf, cfg)

	log.Logger("core/reactor").Debug("reactor detail", "id", 7)
	log.Logger("core/layer").Debug("layer detail")
	log.Logger("core/layer").Info("layer info")

	out := buf.String()
	assert.Contains(t, out, "reactor detail")
	assert.Contains(t, out, "id=7")
	assert.Contains(t, out, "component=core/reactor")
	assert.NotContains(t, out, "layer detail")
	assert.Contains(t, out, "layer info")
	assert.Contains(t, out, "level=debug")

	t.Log("✅ 组件级别过滤测试通过")
}

func TestSetLevel(t *testing.T) {
	restoreDefault(t)

	buf := &bytes.Buffer{}
	Install(buf, DefaultConfig())

	l := log.Logger("core/objpool")
	l.Debug("hidden")
	SetLevel("core/objpool", slog.LevelDebug)
	l.Debug("shown")
	SetLevel("", slog.LevelError)
	log.Logger("core/world").Warn("suppressed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.NotContains(t, out, "suppressed")

	t.Log("✅ 动态级别测试通过")
}

func TestInstall_JSON(t *testing.T) {
	restoreDefault(t)

	cfg := DefaultConfig()
	cfg.Format = FormatJSON

	buf := &bytes.Buffer{}
	Install(buf, cfg)
	log.Logger("core/shutdown").Warn("drain timeout", "pending", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "drain timeout", rec["msg"])
	assert.Equal(t, "core/shutdown", rec["component"])
	assert.Contains(t, rec, "ts")

	t.Log("✅ JSON 格式测试通过")
}

func TestSetup_File(t *testing.T) {
	restoreDefault(t)

	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "fusiond.log")

	closer, err := Setup(cfg)
	require.NoError(t, err)
	log.Logger("cmd").Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	t.Log("✅ 日志文件测试通过")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))

	t.Log("✅ Discard 测试通过")
}
