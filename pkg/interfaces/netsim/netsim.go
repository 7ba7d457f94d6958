// Package netsim 定义虚拟网络拓扑的接口
//
// 仿真器对节点多态：普通端点、防火墙（NAT）、Internet 本身都实现 Node。
// 路由代码只依赖这里的能力接口，不关心具体类型。
//
// 注册表只持有节点引用，不拥有节点；拓扑构建者负责节点的生命周期。
package netsim

import (
	"net/netip"
)

// ============================================================================
//                              节点
// ============================================================================

// Node 可寻址的拓扑参与者
type Node interface {
	// HasIP 该地址是否属于本节点
	HasIP(addr netip.AddrPort) bool

	// SendTo 接收一个发往本节点（或经由本节点转发）的包
	//
	// source 与 target 的地址族必须一致，否则视为编程错误。
	// 实现不得阻塞：队列满时丢弃并计数。
	SendTo(source, target netip.AddrPort, data []byte, timestamp uint64)

	// Process 推进一个仿真 tick
	Process(timestamp uint64)

	// Downlink 返回节点的流量整形句柄（仅用于诊断）
	Downlink() Link
}

// Network 可以注册节点的路由设备（Internet、Firewall）
type Network interface {
	Node

	// AddLocal 注册私网侧节点
	AddLocal(node Node)

	// AddPublic 注册公网侧节点（无 NAT）
	AddPublic(node Node)

	// IsLocalPortFree 私网侧是否没有节点占用该地址
	IsLocalPortFree(addr netip.AddrPort) bool

	// IsPublicPortFree 公网侧是否没有节点占用该地址
	IsPublicPortFree(addr netip.AddrPort) bool

	// LocalNodes 私网侧节点快照
	LocalNodes() []Node

	// PublicNodes 公网侧节点快照
	PublicNodes() []Node
}

// ============================================================================
//                              链路
// ============================================================================

// Link 具名流量整形句柄
type Link interface {
	// Name 链路名称，在一个拓扑内应唯一
	Name() string

	// Admit 判断 size 字节的包能否通过，并记账
	Admit(size int) bool

	// Stats 统计快照
	Stats() LinkStats
}

// LinkStats 链路统计
type LinkStats struct {
	Name    string
	Packets uint64
	Bytes   uint64
	Dropped uint64
	Rate    float64 // bytes/sec, EWMA
}
