package netsim

import (
	"net/netip"
)

// Packet 仿真数据包
//
// 创建时复制负载，之后不再修改。持有它的队列在弹出后把所有权交给路由逻辑。
type Packet struct {
	source    netip.AddrPort
	target    netip.AddrPort
	data      []byte
	timestamp uint64
}

// NewPacket 创建数据包，复制 data
func NewPacket(source, target netip.AddrPort, data []byte, timestamp uint64) *Packet {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Packet{
		source:    source,
		target:    target,
		data:      buf,
		timestamp: timestamp,
	}
}

// Source 源地址
func (p *Packet) Source() netip.AddrPort { return p.source }

// Target 目标地址
func (p *Packet) Target() netip.AddrPort { return p.target }

// Data 负载。调用方不得修改返回的切片。
func (p *Packet) Data() []byte { return p.data }

// Len 负载字节数
func (p *Packet) Len() int { return len(p.data) }

// Timestamp 入队时的仿真时间戳（纳秒）
func (p *Packet) Timestamp() uint64 { return p.timestamp }
