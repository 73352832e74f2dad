package reactor

import (
	"sync/atomic"

	"github.com/directfb2/DirectFB2-sub002/internal/core/metrics"
)

// Stats 进程分发统计
type Stats struct {
	dispatched atomic.Uint64
	delivered  atomic.Uint64
	removed    atomic.Uint64
	failed     atomic.Uint64
	bytes      *metrics.RateMeter
}

// StatsSnapshot 统计快照
type StatsSnapshot struct {
	// Dispatched 本进程发起的分发次数
	Dispatched uint64
	// Delivered 本进程执行的反应次数
	Delivered uint64
	// Removed 分发中以 RSRemove 移除的反应数
	Removed uint64
	// Failed 传输失败次数
	Failed uint64
	// Bytes 最近窗口内分发的字节数
	Bytes int64
	// ByteRate 分发字节速率（字节/秒）
	ByteRate float64
}

func newStats() *Stats {
	return &Stats{bytes: metrics.NewRateMeter()}
}

func (s *Stats) recordDispatch(size int) {
	s.dispatched.Add(1)
	s.bytes.Add(int64(size))
}

// Snapshot 返回统计快照
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Dispatched: s.dispatched.Load(),
		Delivered:  s.delivered.Load(),
		Removed:    s.removed.Load(),
		Failed:     s.failed.Load(),
		Bytes:      s.bytes.Total(),
		ByteRate:   s.bytes.Rate(),
	}
}

// Counters 返回指标采集用的分发计数
func (p *Process) Counters() metrics.DispatchCounters {
	s := p.stats.Snapshot()
	return metrics.DispatchCounters{
		Dispatched: s.Dispatched,
		Delivered:  s.Delivered,
		Removed:    s.Removed,
		Failed:     s.Failed,
		ByteRate:   s.ByteRate,
	}
}
