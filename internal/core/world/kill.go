package world

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/directfb2/DirectFB2-sub002/pkg/types"
	"golang.org/x/sys/unix"
)

// killPollInterval 等待外部进程退出的轮询间隔
const killPollInterval = 10 * time.Millisecond

// Kill 向进程发送信号并等待其离开
//
// 与当前进程同 PID 的参与者通过进程内信号处理函数投递，
// 外部进程使用 kill(2) 并以 kill(pid, 0) 探测退出。
// timeout 为 0 表示不等待。
//
// 返回:
//   - error: 超时未离开返回 types.ErrTimeout
func (s *Shared) Kill(ctx context.Context, id types.FusionID, sig unix.Signal, timeout time.Duration) error {
	p, ok := s.Process(id)
	if !ok {
		return fmt.Errorf("kill %s: %w", id, ErrUnknownProcess)
	}

	logger.Debug("发送信号", "fusion_id", id, "pid", p.PID, "signal", sig)

	if p.PID == os.Getpid() {
		if p.onSignal != nil {
			go p.onSignal(int(sig))
		}
		return s.waitLeft(ctx, p, timeout)
	}

	for {
		err := unix.Kill(p.PID, sig)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ESRCH) {
			s.removeProcess(id)
			return nil
		}
		return fmt.Errorf("kill %s (pid %d): %w", id, p.PID, err)
	}

	if timeout <= 0 {
		return nil
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()
	ticker := s.clock.Ticker(killPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.left:
			return nil
		case <-timer.C:
			return fmt.Errorf("kill %s (pid %d): %w", id, p.PID, types.ErrTimeout)
		case <-ticker.C:
			if err := unix.Kill(p.PID, 0); errors.Is(err, unix.ESRCH) {
				s.removeProcess(id)
				return nil
			}
		}
	}
}

func (s *Shared) waitLeft(ctx context.Context, p *Process, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.left:
		return nil
	case <-timer.C:
		return fmt.Errorf("kill %s: %w", p.ID, types.ErrTimeout)
	}
}
