package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/local"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/privileged"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/socket"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := config.DefaultWorldConfig()
	cfg.SocketDir = t.TempDir()
	cfg.ArenaSize = 1 << 20
	w, err := world.Enter(world.NewShared(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Leave() })
	return w
}

func TestNew_Backends(t *testing.T) {
	cases := []struct {
		backend string
		name    string
		remote  bool
	}{
		{config.BackendPrivileged, privileged.Name, true},
		{config.BackendSocket, socket.Name, true},
		{config.BackendLocal, local.Name, false},
	}

	for _, tc := range cases {
		t.Run(tc.backend, func(t *testing.T) {
			cfg := config.DefaultTransportConfig()
			cfg.Backend = tc.backend

			tr, err := New(newWorld(t), cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.name, tr.Name())
			assert.Equal(t, tc.remote, tr.Capabilities().Remote)
		})
	}

	t.Log("✅ 传输后端选择测试通过")
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.DefaultTransportConfig()
	cfg.Backend = "shm"

	_, err := New(newWorld(t), cfg)
	assert.ErrorIs(t, err, types.ErrUnsupported)

	t.Log("✅ 未知后端测试通过")
}

func TestConfigFromUnified_Nil(t *testing.T) {
	cfg := ConfigFromUnified(nil)
	assert.Equal(t, config.DefaultTransportConfig(), cfg)

	t.Log("✅ ConfigFromUnified(nil) 返回默认配置")
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport.Backend = config.BackendLocal

	var tr pkgif.Transport
	app := fxtest.New(t,
		fx.Supply(cfg, newWorld(t)),
		Module(),
		fx.Populate(&tr),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, tr)
	assert.Equal(t, local.Name, tr.Name())

	t.Log("✅ Transport 模块测试通过")
}
