// Package stunserver 实现挂在仿真网络上的 STUN 服务器节点
//
// 服务器收到 Binding Request 后，用 XOR-MAPPED-ADDRESS 回填它观察到的源地址，
// 也就是经过所有 NAT 之后的公网映射。测试与 CLI 借此从端点视角读取自身映射。
package stunserver

import (
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/pion/stun"

	"github.com/dep2p/go-netsim/internal/core/link"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
	"github.com/dep2p/go-netsim/pkg/types"
)

var logger = log.Logger("core/stunserver")

// Software 响应中携带的 SOFTWARE 属性
const Software = "go-netsim"

// Stats 服务器计数快照
type Stats struct {
	Requests  uint64 // 收到的 Binding Request
	Responses uint64 // 发出的 Binding Success
	Ignored   uint64 // 非 STUN 或无法处理的负载
}

// Server STUN 服务器节点
type Server struct {
	addr     netip.AddrPort
	uplink   netsimif.Node
	downlink *link.Link

	requests  atomic.Uint64
	responses atomic.Uint64
	ignored   atomic.Uint64
}

var _ netsimif.Node = (*Server)(nil)

// New 创建服务器
//
// 服务器不会自动注册，调用方负责 AddPublic / AddLocal。
func New(addr netip.AddrPort, uplink netsimif.Node) (*Server, error) {
	if !addr.IsValid() || uplink == nil {
		return nil, &STUNError{Message: "invalid server address or uplink"}
	}
	addr = types.NormalizeAddrPort(addr)
	return &Server{
		addr:     addr,
		uplink:   uplink,
		downlink: link.New("stun-"+addr.String(), 0),
	}, nil
}

// Addr 服务器地址
func (s *Server) Addr() netip.AddrPort {
	return s.addr
}

// HasIP 精确匹配 ip:port
func (s *Server) HasIP(addr netip.AddrPort) bool {
	return s.addr == types.NormalizeAddrPort(addr)
}

// Downlink 服务器链路
func (s *Server) Downlink() netsimif.Link {
	return s.downlink
}

// Process 服务器在收包时同步应答，tick 时无事可做
func (s *Server) Process(uint64) {}

// SendTo 处理一个入站包
func (s *Server) SendTo(source, target netip.AddrPort, data []byte, timestamp uint64) {
	s.downlink.Admit(len(data))

	if !stun.IsMessage(data) {
		s.ignored.Add(1)
		return
	}

	req := &stun.Message{Raw: append([]byte(nil), data...)}
	if err := req.Decode(); err != nil {
		s.ignored.Add(1)
		logger.Debug("无法解码 STUN 消息", "from", source, "err", err)
		return
	}
	if req.Type != stun.BindingRequest {
		s.ignored.Add(1)
		return
	}
	s.requests.Add(1)

	resp, err := stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: net.IP(source.Addr().AsSlice()), Port: int(source.Port())},
		stun.NewSoftware(Software),
		stun.Fingerprint,
	)
	if err != nil {
		s.ignored.Add(1)
		logger.Warn("构造 STUN 响应失败", "from", source, "err", err)
		return
	}

	logger.Debug("binding", "server", s.addr, "reflexive", source)
	s.responses.Add(1)
	s.uplink.SendTo(s.addr, source, resp.Raw, timestamp)
}

// Stats 返回计数快照
func (s *Server) Stats() Stats {
	return Stats{
		Requests:  s.requests.Load(),
		Responses: s.responses.Load(),
		Ignored:   s.ignored.Load(),
	}
}
