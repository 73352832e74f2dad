package transport

import (
	"fmt"

	"github.com/directfb2/DirectFB2-sub002/config"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/local"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/privileged"
	"github.com/directfb2/DirectFB2-sub002/internal/core/transport/socket"
	"github.com/directfb2/DirectFB2-sub002/internal/core/world"
	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
	"github.com/directfb2/DirectFB2-sub002/pkg/lib/log"
	"github.com/directfb2/DirectFB2-sub002/pkg/types"
)

var logger = log.Logger("core/transport")

// New 按配置创建传输后端
func New(w *world.World, cfg config.TransportConfig) (pkgif.Transport, error) {
	var (
		t   pkgif.Transport
		err error
	)

	switch cfg.Backend {
	case config.BackendPrivileged:
		t = privileged.New(w)
	case config.BackendSocket:
		t, err = socket.New(w, cfg)
	case config.BackendLocal:
		t = local.New(w)
	default:
		return nil, fmt.Errorf("transport backend %q: %w", cfg.Backend, types.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("选定分发传输", "backend", t.Name(), "fusion_id", w.ID())
	return t, nil
}
