package netsim

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netsim/internal/core/link"
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
)

func init() {
	log.Discard()
}

func addr(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

// testConfig 每个测试使用独立的指标，避免计数互相污染
func testConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Metrics = NewMetrics(nil)
	require.NoError(t, cfg.ApplyOptions(opts...))
	return cfg
}

func newEndpoint(t *testing.T, a string, uplink netsimif.Node, name string) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(addr(a), uplink, WithName(name))
	require.NoError(t, err)
	return ep
}

// topology 一个 Internet + 一个防火墙 + LAN 端点 alice/carol + 公网端点 bob
type topology struct {
	cfg      *Config
	internet *Internet
	fw       *Firewall
	alice    *Endpoint
	carol    *Endpoint
	bob      *Endpoint
}

func newTopology(t *testing.T, opts ...Option) *topology {
	t.Helper()
	cfg := testConfig(t, opts...)

	internet, err := NewInternet(cfg)
	require.NoError(t, err)

	fw, err := NewFirewall(cfg, addr("203.0.113.1:0"), internet)
	require.NoError(t, err)

	alice := newEndpoint(t, "10.0.0.2:5000", fw, "alice")
	carol := newEndpoint(t, "10.0.0.3:5000", fw, "carol")
	fw.AddLocal(alice)
	fw.AddLocal(carol)

	bob := newEndpoint(t, "198.51.100.7:4000", internet, "bob")
	internet.AddPublic(bob)

	return &topology{
		cfg:      cfg,
		internet: internet,
		fw:       fw,
		alice:    alice,
		carol:    carol,
		bob:      bob,
	}
}

// tick 执行 n 次 Internet.Process
func (tp *topology) tick(n int) {
	for i := 0; i < n; i++ {
		tp.internet.Process(uint64(i + 1))
	}
}

func drainInbox(ep *Endpoint) []*Packet {
	var out []*Packet
	for {
		p, ok := ep.TryReceive()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

// recordingNode 记录 Process 调用次数与时间戳的节点
type recordingNode struct {
	ip netip.AddrPort

	mu         sync.Mutex
	processed  int
	timestamps []uint64
	packets    []*Packet
}

func (n *recordingNode) HasIP(a netip.AddrPort) bool { return n.ip == a }

func (n *recordingNode) SendTo(source, target netip.AddrPort, data []byte, ts uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.packets = append(n.packets, NewPacket(source, target, data, ts))
}

func (n *recordingNode) Process(ts uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processed++
	n.timestamps = append(n.timestamps, ts)
}

func (n *recordingNode) Downlink() netsimif.Link { return link.New("recorder", 0) }

func (n *recordingNode) processCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.processed
}

func (n *recordingNode) lastTimestamp() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.timestamps) == 0 {
		return 0
	}
	return n.timestamps[len(n.timestamps)-1]
}
