package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	err := cfg.Validate()
	assert.NoError(t, err)
	assert.Equal(t, BackendPrivileged, cfg.Transport.Backend)
	assert.True(t, cfg.Reactor.Direct)

	t.Log("✅ NewConfig 测试通过")
}

// TestWorldConfig 测试 World 配置
func TestWorldConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultWorldConfig()
		assert.GreaterOrEqual(t, cfg.ArenaSize, int64(minArenaSize))
		assert.LessOrEqual(t, cfg.ArenaSize, int64(maxDefaultArenaSize))
		assert.NoError(t, cfg.Validate())
	})

	t.Run("ArenaSizeClamp", func(t *testing.T) {
		assert.Equal(t, int64(minArenaSize), defaultArenaSize(1<<10))
		assert.Equal(t, int64(maxDefaultArenaSize), defaultArenaSize(1<<40))
		assert.Equal(t, int64(64<<20), defaultArenaSize(1<<30))
	})

	t.Run("SocketPath", func(t *testing.T) {
		cfg := DefaultWorldConfig()
		cfg.SocketDir = "/run"
		cfg.Index = 3
		assert.Equal(t, "/run/.fusion-3", cfg.SocketPath())
	})

	t.Run("Validate_Invalid", func(t *testing.T) {
		cfg := DefaultWorldConfig()
		cfg.ArenaSize = 10
		assert.Error(t, cfg.Validate())

		cfg = DefaultWorldConfig()
		cfg.Index = -1
		assert.Error(t, cfg.Validate())
	})

	t.Log("✅ WorldConfig 测试通过")
}

// TestTransportConfig 测试传输配置
func TestTransportConfig(t *testing.T) {
	cfg := DefaultTransportConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Backend = "kernel"
	assert.Error(t, cfg.Validate())

	for _, b := range []string{BackendPrivileged, BackendSocket, BackendLocal} {
		cfg.Backend = b
		assert.NoError(t, cfg.Validate(), b)
	}
}

// TestConfig_ReactorExceedsTransport 测试跨配置校验
func TestConfig_ReactorExceedsTransport(t *testing.T) {
	cfg := NewConfig()
	cfg.Reactor.MaxMessageSize = cfg.Transport.MaxMessageSize + 1

	assert.ErrorIs(t, cfg.Validate(), errReactorExceedsTransport)

	fixes, err := Normalize(cfg)
	require.NoError(t, err)
	assert.Len(t, fixes, 1)
	assert.Equal(t, cfg.Transport.MaxMessageSize, cfg.Reactor.MaxMessageSize)

	fixes, err = Normalize(cfg)
	require.NoError(t, err)
	assert.Empty(t, fixes)
}

// TestShutdownConfig_Budget 测试排空预算
func TestShutdownConfig_Budget(t *testing.T) {
	cfg := DefaultShutdownConfig()
	assert.Equal(t, 2*time.Second, cfg.Budget())

	cfg.Iterations = 0
	assert.Error(t, cfg.Validate())
}

// TestStorageConfig 测试存储配置
func TestStorageConfig(t *testing.T) {
	cfg := DefaultStorageConfig()
	assert.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.DBPath())

	cfg.InMemory = false
	assert.Error(t, cfg.Validate())

	cfg.DataDir = "/var/lib/fusion"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "/var/lib/fusion/fusion.db", cfg.DBPath())
}

// TestFromJSON 测试 JSON 加载
func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"transport": {"backend": "socket"},
		"shutdown": {"info": true, "step": "20ms"}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, BackendSocket, cfg.Transport.Backend)
	assert.True(t, cfg.Shutdown.Info)
	assert.Equal(t, 20*time.Millisecond, cfg.Shutdown.Step.Duration())
	// 未指定的字段保留默认值
	assert.Equal(t, 200, cfg.Shutdown.Iterations)
	assert.NoError(t, cfg.Validate())

	_, err = FromJSON([]byte("{"))
	assert.Error(t, err)

	t.Log("✅ FromJSON 测试通过")
}

// TestToJSON_RoundTrip 测试保存后重新加载
func TestToJSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "slave"))

	data, err := ToJSON(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fusion.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "transport")
}

// TestApplyPreset 测试预设
func TestApplyPreset(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "test"))
	assert.Equal(t, BackendLocal, cfg.Transport.Backend)
	assert.NoError(t, cfg.Validate())

	require.NoError(t, ApplyPreset(cfg, "master"))
	assert.True(t, cfg.Shutdown.Info)

	assert.Error(t, ApplyPreset(cfg, "unknown"))
	assert.Error(t, ApplyPreset(nil, "test"))
}

// TestCloneConfig 测试克隆独立性
func TestCloneConfig(t *testing.T) {
	cfg := NewConfig()
	cloned := CloneConfig(cfg)
	cloned.Transport.Backend = BackendLocal

	assert.Equal(t, BackendPrivileged, cfg.Transport.Backend)
	assert.Nil(t, CloneConfig(nil))
}

// TestLayerConfig 测试图层配置
func TestLayerConfig(t *testing.T) {
	cfg := DefaultLayerConfig()
	assert.Equal(t, 1, cfg.Count)
	assert.NoError(t, cfg.Validate())

	cfg.Count = -1
	assert.Error(t, cfg.Validate())

	full := NewConfig()
	full.Layer.Count = -1
	assert.Error(t, full.Validate())

	t.Log("✅ LayerConfig 测试通过")
}

// TestDuration_JSON 测试时长的两种写法
func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{`"250ms"`, 250 * time.Millisecond},
		{`"1m30s"`, 90 * time.Second},
		{`20`, 20 * time.Millisecond},
		{` 0 `, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			require.NoError(t, json.Unmarshal([]byte(tt.in), &d))
			assert.Equal(t, tt.want, d.Duration())
		})
	}

	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &d))

	out, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(out))

	t.Log("✅ Duration JSON 测试通过")
}
