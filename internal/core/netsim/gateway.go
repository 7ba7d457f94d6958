package netsim

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netsim/pkg/lib/log"
	"github.com/dep2p/go-netsim/pkg/types"
)

// dropLogInterval 队列满告警的最小间隔
const dropLogInterval = time.Second

// Gateway 有界并发入队队列
//
// 多生产者（任意 goroutine 调用 SendTo），单消费者（所属设备的 Process）。
// 入队从不阻塞：队列满时丢弃最新的包并计数。
type Gateway struct {
	name    string
	packets chan *Packet
	metrics *Metrics
	clock   clock.Clock

	dropped     atomic.Uint64
	lastDropLog atomic.Int64 // unix nano
}

// NewGateway 创建网关
func NewGateway(name string, capacity int, metrics *Metrics) *Gateway {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Gateway{
		name:    name,
		packets: make(chan *Packet, capacity),
		metrics: metrics,
		clock:   clock.New(),
	}
}

// withClock 设备创建网关后注入配置中的时间源
func (g *Gateway) withClock(clk clock.Clock) *Gateway {
	if clk != nil {
		g.clock = clk
	}
	return g
}

// Name 网关名称（用作指标的 device 标签）
func (g *Gateway) Name() string {
	return g.name
}

// SendTo 构造数据包并入队
//
// source 与 target 地址族不一致时 panic（*FamilyMismatchError）。
func (g *Gateway) SendTo(source, target netip.AddrPort, data []byte, timestamp uint64) {
	if !types.SameFamily(source, target) {
		panic(&FamilyMismatchError{Source: source.String(), Target: target.String()})
	}

	if logger.Enabled(log.LevelDebug) {
		logger.Debug("sendTo", "gateway", g.name, "from", source, "to", target, "bytes", len(data))
	}

	select {
	case g.packets <- NewPacket(source, target, data, timestamp):
		g.metrics.Enqueued.WithLabelValues(g.name).Inc()
	default:
		g.dropped.Add(1)
		g.metrics.drop(g.name, DropQueueFull)
		g.logDrop()
	}
}

// logDrop 限频输出队列满告警
func (g *Gateway) logDrop() {
	now := g.clock.Now().UnixNano()
	last := g.lastDropLog.Load()
	if now-last < int64(dropLogInterval) || !g.lastDropLog.CompareAndSwap(last, now) {
		return
	}
	logger.Warn("网关队列已满，丢弃数据包",
		"gateway", g.name,
		"capacity", cap(g.packets),
		"dropped", g.dropped.Load())
}

// Pop 非阻塞弹出一个包
func (g *Gateway) Pop() (*Packet, bool) {
	select {
	case p := <-g.packets:
		return p, true
	default:
		return nil, false
	}
}

// drain 最多弹出 limit 个包并逐个交给 fn
//
// limit 通常取 tick 开始时的队列长度，保证一次 Process 必然结束。
func (g *Gateway) drain(limit int, fn func(*Packet)) int {
	n := 0
	for n < limit {
		p, ok := g.Pop()
		if !ok {
			break
		}
		fn(p)
		n++
	}
	return n
}

// Len 当前排队的包数
func (g *Gateway) Len() int {
	return len(g.packets)
}

// Cap 队列容量
func (g *Gateway) Cap() int {
	return cap(g.packets)
}

// Dropped 因队列满而丢弃的包数
func (g *Gateway) Dropped() uint64 {
	return g.dropped.Load()
}
