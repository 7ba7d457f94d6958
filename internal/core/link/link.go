// Package link 实现仿真节点的流量整形句柄
//
// 每个节点暴露一个具名的 downlink。路由逻辑不解释它，
// 只用于诊断（名称 → 链路映射）以及简单的带宽上限。
// 丢包、抖动等真实整形不在这里实现。
package link

import (
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
)

// MaxPacketSize 单个仿真数据包的最大字节数
//
// 令牌桶的 burst 不小于该值，否则大包永远无法通过。
const MaxPacketSize = 65535

// Link 具名链路
type Link struct {
	name    string
	limiter *rate.Limiter // nil 表示不限速
	clock   clock.Clock
	meter   *Meter

	packets atomic.Uint64
	dropped atomic.Uint64
}

var _ netsimif.Link = (*Link)(nil)

// Option 链路选项
type Option func(*Link)

// WithClock 设置时钟（测试中使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(l *Link) {
		l.clock = clk
	}
}

// New 创建链路
//
// bytesPerSecond 为 0 时不限速。name 为空时生成随机名称。
func New(name string, bytesPerSecond int64, opts ...Option) *Link {
	if name == "" {
		name = "link-" + uuid.NewString()[:8]
	}

	l := &Link{
		name:  name,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if bytesPerSecond > 0 {
		burst := int(bytesPerSecond)
		if burst < MaxPacketSize {
			burst = MaxPacketSize
		}
		l.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
	}
	l.meter = NewMeter(l.clock)
	return l
}

// Name 链路名称
func (l *Link) Name() string {
	return l.name
}

// Admit 判断一个 size 字节的包能否通过链路，并记账
func (l *Link) Admit(size int) bool {
	if l.limiter != nil && !l.limiter.AllowN(l.clock.Now(), size) {
		l.dropped.Add(1)
		return false
	}
	l.packets.Add(1)
	l.meter.Mark(uint64(size))
	return true
}

// Stats 返回统计快照
func (l *Link) Stats() netsimif.LinkStats {
	return netsimif.LinkStats{
		Name:    l.name,
		Packets: l.packets.Load(),
		Bytes:   l.meter.Total(),
		Dropped: l.dropped.Load(),
		Rate:    l.meter.Rate(),
	}
}
