package netsim

import (
	"net/netip"
	"reflect"
	"sync"

	"github.com/dep2p/go-netsim/internal/core/link"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
	"github.com/dep2p/go-netsim/pkg/types"
)

// PortMapping NAT 端口映射
type PortMapping struct {
	Private netip.AddrPort
	Public  netip.AddrPort
}

// Firewall 有状态 NAT/防火墙设备
//
// 位于一个私网（LAN）与上游网络之间，只有一个公网地址。
// 映射在首个出站包时惰性创建，在防火墙生命周期内永不过期；
// 没有映射的入站包一律丢弃。
type Firewall struct {
	*Gateway

	cfg      *Config
	public   netip.AddrPort
	upstream netsimif.Network
	downlink *link.Link

	mu        sync.Mutex
	endpoints []netsimif.Node // LAN
	dmz       []netsimif.Node // 公网侧，无 NAT

	// 映射表只由 Process 写入；mappingMu 仅用于保护诊断读取
	mappingMu sync.RWMutex
	byPrivate map[netip.AddrPort]netip.AddrPort
	byPort    map[uint16]netip.AddrPort // public port -> private
	mappings  []PortMapping
	nextPort  uint32 // 单调递增，超过 65535 即耗尽
}

var _ netsimif.Network = (*Firewall)(nil)

// NewFirewall 创建防火墙并立即注册到上游网络
//
// public 的端口部分被忽略，公网端口由 NAT 分配。
func NewFirewall(cfg *Config, public netip.AddrPort, upstream netsimif.Network) (*Firewall, error) {
	cfg, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !public.Addr().IsValid() || isNilNetwork(upstream) {
		return nil, ErrInvalidAddress
	}
	public = types.NormalizeAddrPort(public)

	name := "firewall-" + public.Addr().String()
	fw := &Firewall{
		Gateway:   NewGateway(name, cfg.QueueCapacity, cfg.Metrics).withClock(cfg.Clock),
		cfg:       cfg,
		public:    public,
		upstream:  upstream,
		downlink:  link.New(name, 0),
		byPrivate: make(map[netip.AddrPort]netip.AddrPort),
		byPort:    make(map[uint16]netip.AddrPort),
		nextPort:  uint32(cfg.FirstPublicPort),
	}

	upstream.AddLocal(fw)
	logger.Info("防火墙已接入上游", "public", public.Addr())
	return fw, nil
}

// PublicAddr 防火墙公网地址
func (f *Firewall) PublicAddr() netip.Addr {
	return f.public.Addr()
}

// Upstream 防火墙所在的上游网络
func (f *Firewall) Upstream() netsimif.Network {
	return f.upstream
}

// AddLocal 注册 LAN 节点
func (f *Firewall) AddLocal(node netsimif.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, node)
}

// AddPublic 注册 DMZ 节点（公网侧直达，无地址转换）
func (f *Firewall) AddPublic(node netsimif.Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dmz = append(f.dmz, node)
}

// IsLocalPortFree LAN 中是否没有节点占用 addr
func (f *Firewall) IsLocalPortFree(addr netip.AddrPort) bool {
	return f.findLocal(addr) == nil
}

// IsPublicPortFree DMZ 中是否没有节点占用 addr
func (f *Firewall) IsPublicPortFree(addr netip.AddrPort) bool {
	return f.findDMZ(addr) == nil
}

// LocalNodes LAN 节点快照
func (f *Firewall) LocalNodes() []netsimif.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netsimif.Node(nil), f.endpoints...)
}

// PublicNodes DMZ 节点快照
func (f *Firewall) PublicNodes() []netsimif.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netsimif.Node(nil), f.dmz...)
}

// HasIP addr 的 IP 是否为防火墙公网 IP（任意端口）
func (f *Firewall) HasIP(addr netip.AddrPort) bool {
	return types.EqualsIP(f.public, addr)
}

// Downlink 防火墙自身的链路
func (f *Firewall) Downlink() netsimif.Link {
	return f.downlink
}

// Process 清空队列并逐包应用转发规则，随后推进 LAN 与 DMZ 节点
func (f *Firewall) Process(timestamp uint64) {
	f.drain(f.Len(), func(p *Packet) {
		f.route(p, timestamp)
	})

	for _, node := range f.LocalNodes() {
		node.Process(timestamp)
	}
	for _, node := range f.PublicNodes() {
		node.Process(timestamp)
	}
}

// route 对单个包按顺序匹配：入站映射、LAN 直达、排除段、出站 NAT
func (f *Firewall) route(p *Packet, timestamp uint64) {
	src, dst := p.Source(), p.Target()

	if types.FamilyOf(src) != types.FamilyOf(f.public) {
		f.metrics.drop(f.name, DropFamilyMismatch)
		logger.Error("地址族与防火墙不一致，丢弃", "firewall", f.name, "from", src, "to", dst)
		return
	}

	// 1. 发往公网 IP：只接受已有映射
	if types.EqualsIP(f.public, dst) {
		private, ok := f.privateFor(dst.Port())
		if !ok {
			f.metrics.drop(f.name, DropNoMapping)
			logger.Debug("无映射的入站包，丢弃", "firewall", f.name, "from", src, "to", dst)
			return
		}
		node := f.findLocal(private)
		if node == nil {
			f.metrics.drop(f.name, DropUnreachable)
			return
		}
		logger.Debug("inbound", "firewall", f.name, "from", src, "to", private)
		f.metrics.routed(f.name, PathInbound)
		node.SendTo(src, private, p.Data(), timestamp)
		return
	}

	// 2. LAN 内直达，不建映射
	if node := f.findLocal(dst); node != nil {
		logger.Debug("local", "firewall", f.name, "from", src, "to", dst)
		f.metrics.routed(f.name, PathLocal)
		node.SendTo(src, dst, p.Data(), timestamp)
		return
	}

	// 3. 拓扑外的私有子网
	if f.excluded(dst) {
		f.metrics.drop(f.name, DropExcluded)
		return
	}

	// 4. 出站：源地址转换
	mapped, err := f.mappingFor(src)
	if err != nil {
		f.metrics.drop(f.name, DropPortsExhausted)
		logger.Error("NAT 端口分配失败", "firewall", f.name, "from", src, "err", err)
		return
	}
	f.sendToPublic(mapped, dst, p.Data(), timestamp)
}

// sendToPublic 出站包优先投递给 DMZ 节点，否则交给上游
func (f *Firewall) sendToPublic(source, target netip.AddrPort, data []byte, timestamp uint64) {
	if node := f.findDMZ(target); node != nil {
		logger.Debug("dmz", "firewall", f.name, "from", source, "to", target)
		f.metrics.routed(f.name, PathDMZ)
		node.SendTo(source, target, data, timestamp)
		return
	}
	f.metrics.routed(f.name, PathUpstream)
	f.upstream.SendTo(source, target, data, timestamp)
}

func (f *Firewall) excluded(addr netip.AddrPort) bool {
	ip := addr.Addr().Unmap()
	for _, prefix := range f.cfg.ExcludedRanges {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// ============================================================================
//                              NAT 映射
// ============================================================================

// mappingFor 返回 private 的公网映射，不存在时分配
//
// 端口计数器只增不减，已被占用的候选端口被跳过；
// 最多尝试 MaxPortAttempts 个候选，超出即返回 ErrPortsExhausted。
func (f *Firewall) mappingFor(private netip.AddrPort) (netip.AddrPort, error) {
	f.mappingMu.RLock()
	public, ok := f.byPrivate[private]
	f.mappingMu.RUnlock()
	if ok {
		return public, nil
	}

	f.mappingMu.Lock()
	defer f.mappingMu.Unlock()

	for attempt := 0; attempt < f.cfg.MaxPortAttempts; attempt++ {
		if f.nextPort > 0xffff {
			break
		}
		port := uint16(f.nextPort)
		f.nextPort++
		if _, taken := f.byPort[port]; taken {
			continue
		}

		public = types.WithPort(f.public, port)
		f.byPrivate[private] = public
		f.byPort[port] = private
		f.mappings = append(f.mappings, PortMapping{Private: private, Public: public})
		f.metrics.NATMappings.WithLabelValues(f.name).Set(float64(len(f.mappings)))
		logger.Debug("新建 NAT 映射", "firewall", f.name, "private", private, "public", public)
		return public, nil
	}
	return netip.AddrPort{}, ErrPortsExhausted
}

// privateFor 按公网端口查找私网地址
func (f *Firewall) privateFor(port uint16) (netip.AddrPort, bool) {
	f.mappingMu.RLock()
	defer f.mappingMu.RUnlock()
	private, ok := f.byPort[port]
	return private, ok
}

// MappingFor 返回 private 当前的公网映射
func (f *Firewall) MappingFor(private netip.AddrPort) (netip.AddrPort, bool) {
	f.mappingMu.RLock()
	defer f.mappingMu.RUnlock()
	public, ok := f.byPrivate[private]
	return public, ok
}

// Mappings 按创建顺序返回所有映射
func (f *Firewall) Mappings() []PortMapping {
	f.mappingMu.RLock()
	defer f.mappingMu.RUnlock()
	return append([]PortMapping(nil), f.mappings...)
}

// MappingCount 映射数量
func (f *Firewall) MappingCount() int {
	f.mappingMu.RLock()
	defer f.mappingMu.RUnlock()
	return len(f.mappings)
}

// isNilNetwork 同时识别 nil 接口与包装了 nil 指针的接口
func isNilNetwork(n netsimif.Network) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (f *Firewall) findLocal(addr netip.AddrPort) netsimif.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return findOwner(f.endpoints, addr)
}

func (f *Firewall) findDMZ(addr netip.AddrPort) netsimif.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return findOwner(f.dmz, addr)
}
