package netsim

import (
	"context"
	"net/netip"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dep2p/go-netsim/internal/core/link"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
	"github.com/dep2p/go-netsim/pkg/types"
)

// DefaultInboxCapacity 端点收件箱默认容量
const DefaultInboxCapacity = 1024

// Handler 端点收包回调，在投递该包的 goroutine 上同步执行
type Handler func(ep *Endpoint, p *Packet)

// Endpoint 普通测试端点
//
// 拥有一个 ip:port；从网络收到的包经 downlink 准入后放入收件箱，
// 并交给可选的 Handler。Send 通过 uplink 发出，源地址为自身地址。
type Endpoint struct {
	name     string
	addr     netip.AddrPort
	uplink   netsimif.Node
	downlink netsimif.Link
	handler  Handler

	inbox    chan *Packet
	received atomic.Uint64
	dropped  atomic.Uint64
}

var _ netsimif.Node = (*Endpoint)(nil)

// EndpointOption 端点选项
type EndpointOption func(*endpointOptions)

type endpointOptions struct {
	name          string
	handler       Handler
	inboxCapacity int
	bandwidth     int64
	downlink      netsimif.Link
}

// WithName 设置端点名称（也是 downlink 名称）
func WithName(name string) EndpointOption {
	return func(o *endpointOptions) { o.name = name }
}

// WithHandler 设置收包回调
func WithHandler(h Handler) EndpointOption {
	return func(o *endpointOptions) { o.handler = h }
}

// WithInboxCapacity 设置收件箱容量
func WithInboxCapacity(n int) EndpointOption {
	return func(o *endpointOptions) { o.inboxCapacity = n }
}

// WithBandwidth 设置 downlink 带宽上限（字节/秒，0 不限速）
func WithBandwidth(bytesPerSecond int64) EndpointOption {
	return func(o *endpointOptions) { o.bandwidth = bytesPerSecond }
}

// WithDownlink 使用外部提供的流量整形句柄
func WithDownlink(l netsimif.Link) EndpointOption {
	return func(o *endpointOptions) { o.downlink = l }
}

// NewEndpoint 创建端点
//
// 端点不会自动注册，调用方按拓扑需要调用 AddLocal 或 AddPublic。
func NewEndpoint(addr netip.AddrPort, uplink netsimif.Node, opts ...EndpointOption) (*Endpoint, error) {
	if !addr.IsValid() || uplink == nil {
		return nil, ErrInvalidAddress
	}

	o := endpointOptions{inboxCapacity: DefaultInboxCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "endpoint-" + uuid.NewString()[:8]
	}
	if o.inboxCapacity <= 0 {
		o.inboxCapacity = DefaultInboxCapacity
	}
	if o.downlink == nil {
		o.downlink = link.New(o.name, o.bandwidth)
	}

	return &Endpoint{
		name:     o.name,
		addr:     types.NormalizeAddrPort(addr),
		uplink:   uplink,
		downlink: o.downlink,
		handler:  o.handler,
		inbox:    make(chan *Packet, o.inboxCapacity),
	}, nil
}

// Name 端点名称
func (e *Endpoint) Name() string { return e.name }

// Addr 端点地址
func (e *Endpoint) Addr() netip.AddrPort { return e.addr }

// HasIP 精确匹配 ip:port
func (e *Endpoint) HasIP(addr netip.AddrPort) bool {
	return e.addr == types.NormalizeAddrPort(addr)
}

// SendTo 从网络接收一个包
func (e *Endpoint) SendTo(source, target netip.AddrPort, data []byte, timestamp uint64) {
	if !types.SameFamily(source, target) {
		panic(&FamilyMismatchError{Source: source.String(), Target: target.String()})
	}
	if !e.downlink.Admit(len(data)) {
		e.dropped.Add(1)
		return
	}

	p := NewPacket(source, target, data, timestamp)
	e.received.Add(1)

	select {
	case e.inbox <- p:
	default:
		e.dropped.Add(1)
		logger.Warn("端点收件箱已满，丢弃数据包", "endpoint", e.name)
	}

	if e.handler != nil {
		e.handler(e, p)
	}
}

// Process 端点没有内部路由，tick 时无事可做
func (e *Endpoint) Process(uint64) {}

// Downlink 端点的流量整形句柄
func (e *Endpoint) Downlink() netsimif.Link {
	return e.downlink
}

// Send 以自身地址为源，通过 uplink 发送
func (e *Endpoint) Send(target netip.AddrPort, data []byte, timestamp uint64) {
	e.uplink.SendTo(e.addr, target, data, timestamp)
}

// Receive 阻塞等待下一个包
func (e *Endpoint) Receive(ctx context.Context) (*Packet, error) {
	select {
	case p := <-e.inbox:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryReceive 非阻塞读取下一个包
func (e *Endpoint) TryReceive() (*Packet, bool) {
	select {
	case p := <-e.inbox:
		return p, true
	default:
		return nil, false
	}
}

// Received 已接收（通过 downlink 准入）的包数
func (e *Endpoint) Received() uint64 {
	return e.received.Load()
}

// Dropped 因限速或收件箱满而丢弃的包数
func (e *Endpoint) Dropped() uint64 {
	return e.dropped.Load()
}
