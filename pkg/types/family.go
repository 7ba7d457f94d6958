package types

import (
	"net/netip"
)

// Family 地址族
type Family int

const (
	// FamilyUnknown 无效地址
	FamilyUnknown Family = iota
	// FamilyV4 IPv4
	FamilyV4
	// FamilyV6 IPv6
	FamilyV6
)

func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "v4"
	case FamilyV6:
		return "v6"
	default:
		return "unknown"
	}
}

// FamilyOf 返回地址的地址族
//
// IPv4-mapped IPv6 地址（::ffff:a.b.c.d）按 IPv4 处理。
func FamilyOf(addr netip.AddrPort) Family {
	ip := addr.Addr()
	if !ip.IsValid() {
		return FamilyUnknown
	}
	if ip.Unmap().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// SameFamily 两个地址是否属于同一地址族（无效地址永远不匹配）
func SameFamily(a, b netip.AddrPort) bool {
	fa := FamilyOf(a)
	return fa != FamilyUnknown && fa == FamilyOf(b)
}

// EqualsIP 比较两个地址的 IP 部分，忽略端口
func EqualsIP(a, b netip.AddrPort) bool {
	return a.Addr().Unmap() == b.Addr().Unmap()
}

// NormalizeAddrPort 去掉 IPv4-mapped 前缀，使同一端点只有一种表示
func NormalizeAddrPort(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// WithPort 返回替换端口后的地址
func WithPort(addr netip.AddrPort, port uint16) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr(), port)
}
