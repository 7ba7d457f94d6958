package netsim

import (
	"net/netip"

	"github.com/dep2p/go-netsim/internal/core/capture"
	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
	"github.com/dep2p/go-netsim/internal/core/stunserver"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
)

// ════════════════════════════════════════════════════════════════════════════
//                              拓扑类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// Node 拓扑节点
	Node = netsimif.Node

	// Network 可注册子节点的节点
	Network = netsimif.Network

	// Link 节点的流量整形句柄
	Link = netsimif.Link

	// LinkStats 链路统计快照
	LinkStats = netsimif.LinkStats

	// Packet 仿真数据包
	Packet = simcore.Packet

	// Internet 拓扑根
	Internet = simcore.Internet

	// Firewall 有状态 NAT
	Firewall = simcore.Firewall

	// PortMapping NAT 端口映射
	PortMapping = simcore.PortMapping

	// Endpoint 测试端点
	Endpoint = simcore.Endpoint

	// EndpointOption 端点选项
	EndpointOption = simcore.EndpointOption

	// Handler 端点收包回调
	Handler = simcore.Handler

	// Runner 后台驱动器
	Runner = simcore.Runner

	// RunnerState Runner 状态
	RunnerState = simcore.State

	// Config 仿真配置
	Config = simcore.Config

	// Metrics 仿真指标
	Metrics = simcore.Metrics

	// Tap 路由观察者
	Tap = simcore.Tap

	// STUNServer STUN 服务器节点
	STUNServer = stunserver.Server

	// CaptureWriter pcap 写入器
	CaptureWriter = capture.Writer
)

// Runner 状态
const (
	StatePaused  = simcore.StatePaused
	StateRunning = simcore.StateRunning
	StateQuit    = simcore.StateQuit
)

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// DefaultConfig 返回默认仿真配置
func DefaultConfig() *Config {
	return simcore.DefaultConfig()
}

// NewPacket 创建数据包（复制 data）
func NewPacket(source, target netip.AddrPort, data []byte, timestamp uint64) *Packet {
	return simcore.NewPacket(source, target, data, timestamp)
}

// NewInternet 创建独立的 Internet（不带 Runner）
func NewInternet(cfg *Config) (*Internet, error) {
	return simcore.NewInternet(cfg)
}

// NewFirewall 创建防火墙并注册到 upstream
func NewFirewall(cfg *Config, public netip.AddrPort, upstream Network) (*Firewall, error) {
	return simcore.NewFirewall(cfg, public, upstream)
}

// NewEndpoint 创建端点
func NewEndpoint(addr netip.AddrPort, uplink Node, opts ...EndpointOption) (*Endpoint, error) {
	return simcore.NewEndpoint(addr, uplink, opts...)
}

// NewSTUNServer 创建 STUN 服务器节点
func NewSTUNServer(addr netip.AddrPort, uplink Node) (*STUNServer, error) {
	return stunserver.New(addr, uplink)
}

// ParseBindingResponse 从 STUN Binding Success 中提取映射地址
func ParseBindingResponse(data []byte) (netip.AddrPort, error) {
	return stunserver.ParseBindingResponse(data)
}

// MapOfInternet 返回网络中 downlink 名称到链路的映射
func MapOfInternet(network Network) map[string]Link {
	return simcore.MapOfInternet(network)
}

// 端点选项
var (
	WithName          = simcore.WithName
	WithHandler       = simcore.WithHandler
	WithInboxCapacity = simcore.WithInboxCapacity
	WithBandwidth     = simcore.WithBandwidth
)
