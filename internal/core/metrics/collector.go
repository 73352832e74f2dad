package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	pkgif "github.com/directfb2/DirectFB2-sub002/pkg/interfaces"
)

// DispatchCounters 进程分发计数
type DispatchCounters struct {
	Dispatched uint64
	Delivered  uint64
	Removed    uint64
	Failed     uint64
	ByteRate   float64
}

// PoolSource 对象池来源（由 world.Shared 实现）
type PoolSource interface {
	Pools() []pkgif.ObjectPool
}

// DispatchSource 分发计数来源（由 reactor.Process 实现）
type DispatchSource interface {
	Counters() DispatchCounters
}

// ArenaSource 共享内存区来源
type ArenaSource interface {
	ArenaUsage() (used, capacity int64)
}

// Collector Fusion 的 Prometheus 采集器
//
// 每次采集时读取来源的当前值，不缓存。
type Collector struct {
	pools    PoolSource
	dispatch DispatchSource
	arena    ArenaSource

	poolObjects *prometheus.Desc
	dispatched  *prometheus.Desc
	delivered   *prometheus.Desc
	removed     *prometheus.Desc
	failed      *prometheus.Desc
	byteRate    *prometheus.Desc
	arenaUsed   *prometheus.Desc
	arenaCap    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建采集器，任一来源可以为 nil
func NewCollector(namespace string, pools PoolSource, dispatch DispatchSource, arena ArenaSource) *Collector {
	return &Collector{
		pools:    pools,
		dispatch: dispatch,
		arena:    arena,

		poolObjects: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "objects"),
			"Live objects per pool.", []string{"pool", "id"}, nil),
		dispatched: prometheus.NewDesc(prometheus.BuildFQName(namespace, "reactor", "dispatched_total"),
			"Messages dispatched by this process.", nil, nil),
		delivered: prometheus.NewDesc(prometheus.BuildFQName(namespace, "reactor", "delivered_total"),
			"Reactions invoked in this process.", nil, nil),
		removed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "reactor", "removed_total"),
			"Reactions removed during dispatch.", nil, nil),
		failed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "reactor", "failed_total"),
			"Dispatches that failed in the transport.", nil, nil),
		byteRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, "reactor", "bytes_per_second"),
			"Dispatched payload bytes per second over the last minute.", nil, nil),
		arenaUsed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "arena", "used_bytes"),
			"Bytes allocated from the shared arena.", nil, nil),
		arenaCap: prometheus.NewDesc(prometheus.BuildFQName(namespace, "arena", "capacity_bytes"),
			"Shared arena capacity.", nil, nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolObjects
	ch <- c.dispatched
	ch <- c.delivered
	ch <- c.removed
	ch <- c.failed
	ch <- c.byteRate
	ch <- c.arenaUsed
	ch <- c.arenaCap
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.pools != nil {
		for _, p := range c.pools.Pools() {
			ch <- prometheus.MustNewConstMetric(c.poolObjects, prometheus.GaugeValue, float64(p.Size()), p.Name(), strconv.FormatUint(uint64(p.ID()), 10))
		}
	}

	if c.dispatch != nil {
		s := c.dispatch.Counters()
		ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatched))
		ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(s.Delivered))
		ch <- prometheus.MustNewConstMetric(c.removed, prometheus.CounterValue, float64(s.Removed))
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
		ch <- prometheus.MustNewConstMetric(c.byteRate, prometheus.GaugeValue, s.ByteRate)
	}

	if c.arena != nil {
		used, capacity := c.arena.ArenaUsage()
		ch <- prometheus.MustNewConstMetric(c.arenaUsed, prometheus.GaugeValue, float64(used))
		ch <- prometheus.MustNewConstMetric(c.arenaCap, prometheus.GaugeValue, float64(capacity))
	}
}
