package netsim

import (
	"net/netip"
	"sync"

	"github.com/dep2p/go-netsim/internal/core/link"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
)

// Tap 路由观察者
//
// Internet 每转发一个包调用一次 Observe（在仿真 goroutine 上）。
// 实现不得阻塞，也不得修改包。
type Tap interface {
	Observe(p *Packet)
}

// Internet 开放、无整形的网络，拓扑的根
//
// Internet 本身也是 Node，因此可以嵌套在另一个 Internet 中。
type Internet struct {
	*Gateway

	cfg      *Config
	downlink *link.Link

	mu    sync.Mutex
	nodes []netsimif.Node

	tapMu sync.RWMutex
	tap   Tap
}

var _ netsimif.Network = (*Internet)(nil)

// NewInternet 创建 Internet
//
// cfg 为 nil 时使用 DefaultConfig()。
func NewInternet(cfg *Config) (*Internet, error) {
	cfg, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Internet{
		Gateway:  NewGateway("internet", cfg.QueueCapacity, cfg.Metrics).withClock(cfg.Clock),
		cfg:      cfg,
		downlink: link.New("internet", 0),
	}, nil
}

// AddLocal 注册节点
func (n *Internet) AddLocal(node netsimif.Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes = append(n.nodes, node)
}

// AddPublic 注册节点，Internet 层没有 NAT，与 AddLocal 相同
func (n *Internet) AddPublic(node netsimif.Node) {
	n.AddLocal(node)
}

// IsPublicPortFree 是否没有节点占用 addr
func (n *Internet) IsPublicPortFree(addr netip.AddrPort) bool {
	return n.findNode(addr) == nil
}

// IsLocalPortFree 与 IsPublicPortFree 相同
func (n *Internet) IsLocalPortFree(addr netip.AddrPort) bool {
	return n.IsPublicPortFree(addr)
}

// LocalNodes 节点快照
func (n *Internet) LocalNodes() []netsimif.Node {
	return n.snapshot()
}

// PublicNodes 节点快照（与 LocalNodes 相同）
func (n *Internet) PublicNodes() []netsimif.Node {
	return n.snapshot()
}

// HasIP 是否有注册节点拥有该地址
func (n *Internet) HasIP(addr netip.AddrPort) bool {
	return n.findNode(addr) != nil
}

// Downlink 返回 Internet 自身的链路
func (n *Internet) Downlink() netsimif.Link {
	return n.downlink
}

// SetTap 设置路由观察者，nil 表示取消
func (n *Internet) SetTap(tap Tap) {
	n.tapMu.Lock()
	defer n.tapMu.Unlock()
	n.tap = tap
}

// Process 推进一个 tick
//
//  1. 推进所有节点（让节点刷出待发流量）
//  2. 清空本 tick 开始时已排队的包，投递给拥有目标地址的第一个节点；无主则丢弃
//  3. 再次推进所有节点，使刚投递给嵌套设备的包在同一 tick 内被继续路由
//
// 节点锁只在取快照时持有，从不跨越节点调用。
func (n *Internet) Process(timestamp uint64) {
	n.advance(timestamp)

	n.tapMu.RLock()
	tap := n.tap
	n.tapMu.RUnlock()

	n.drain(n.Len(), func(p *Packet) {
		node := n.findNode(p.Target())
		if node == nil {
			n.metrics.drop(n.name, DropUnreachable)
			logger.Debug("目标不可达，丢弃", "from", p.Source(), "to", p.Target())
			return
		}

		if tap != nil {
			tap.Observe(p)
		}
		n.metrics.routed(n.name, PathDirect)
		node.SendTo(p.Source(), p.Target(), p.Data(), timestamp)
	})

	n.advance(timestamp)
}

// advance 对所有节点调用一次 Process
func (n *Internet) advance(timestamp uint64) {
	for _, node := range n.snapshot() {
		node.Process(timestamp)
	}
}

func (n *Internet) snapshot() []netsimif.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]netsimif.Node(nil), n.nodes...)
}

// findNode 返回第一个拥有 addr 的节点
func (n *Internet) findNode(addr netip.AddrPort) netsimif.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return findOwner(n.nodes, addr)
}

func findOwner(nodes []netsimif.Node, addr netip.AddrPort) netsimif.Node {
	for _, node := range nodes {
		if node.HasIP(addr) {
			return node
		}
	}
	return nil
}
