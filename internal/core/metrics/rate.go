package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

// rateBuckets 滑动窗口的桶数（每桶 1 秒）
const rateBuckets = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶来计算最近 60 秒的平均速率。
type RateMeter struct {
	clock clock.Clock

	mu       sync.RWMutex
	buckets  [rateBuckets]int64
	lastIdx  int
	lastTime time.Time
	total    int64
}

// NewRateMeter 创建速率计算器
func NewRateMeter() *RateMeter {
	return NewRateMeterWithClock(clock.New())
}

// NewRateMeterWithClock 使用指定时钟创建速率计算器
func NewRateMeterWithClock(c clock.Clock) *RateMeter {
	return &RateMeter{
		clock:    c,
		lastTime: c.Now(),
	}
}

// advance 按流逝的秒数滚动桶（需持有写锁）
func (r *RateMeter) advance(now time.Time) {
	elapsed := now.Sub(r.lastTime)
	if elapsed < time.Second {
		return
	}

	seconds := int(elapsed / time.Second)
	if seconds >= rateBuckets {
		r.buckets = [rateBuckets]int64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % rateBuckets
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

// Add 添加数量到当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clock.Now())
	r.buckets[r.lastIdx] += n
	r.total += n
}

// Rate 返回最近窗口的平均速率（每秒）
func (r *RateMeter) Rate() float64 {
	return float64(r.Window()) / rateBuckets
}

// Window 返回最近窗口内的总量
func (r *RateMeter) Window() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clock.Now())

	var sum int64
	for _, v := range r.buckets {
		sum += v
	}
	return sum
}

// Total 返回累计总量
func (r *RateMeter) Total() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Reset 重置速率计算器
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buckets = [rateBuckets]int64{}
	r.lastIdx = 0
	r.total = 0
	r.lastTime = r.clock.Now()
}
