package link

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// EWMA 参数
const (
	// alpha 是 EWMA 的平滑因子，值越大对新数据越敏感
	alpha = 0.25

	// tickInterval 是速率更新间隔
	tickInterval = time.Second
)

// Meter 流量计量器
//
// 使用指数加权移动平均 (EWMA) 计算速率，每经过 tickInterval 更新一次。
// 所有操作都是线程安全的。
type Meter struct {
	clock clock.Clock
	total atomic.Uint64

	mu       sync.Mutex
	window   uint64 // 当前窗口内的字节数
	rate     float64
	lastTick time.Time
}

// NewMeter 创建计量器
func NewMeter(clk clock.Clock) *Meter {
	if clk == nil {
		clk = clock.New()
	}
	return &Meter{
		clock:    clk,
		lastTick: clk.Now(),
	}
}

// Mark 记录字节数
func (m *Meter) Mark(n uint64) {
	m.total.Add(n)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.window += n
	m.tickLocked()
}

// tickLocked 经过足够时间后把窗口折算进速率
func (m *Meter) tickLocked() {
	now := m.clock.Now()
	elapsed := now.Sub(m.lastTick)
	if elapsed < tickInterval {
		return
	}

	instant := float64(m.window) / elapsed.Seconds()
	if m.rate == 0 {
		m.rate = instant
	} else {
		m.rate = alpha*instant + (1-alpha)*m.rate
	}
	m.window = 0
	m.lastTick = now
}

// Total 累计字节数
func (m *Meter) Total() uint64 {
	return m.total.Load()
}

// Rate 当前速率 (bytes/sec)
func (m *Meter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickLocked()
	return m.rate
}
