package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-netsim"
	"github.com/dep2p/go-netsim/config"
	"github.com/dep2p/go-netsim/internal/core/stunserver"
)

// probeTimeout 单个 STUN 探测等待响应的上限
const probeTimeout = 2 * time.Second

// lanEndpoint 防火墙后面的端点
type lanEndpoint struct {
	ep *netsim.Endpoint
	fw *netsim.Firewall
}

// topology 按配置搭建出的拓扑
type topology struct {
	internet  *netsim.Internet
	firewalls []*netsim.Firewall
	byName    map[string]*netsim.Firewall
	public    []*netsim.Endpoint
	lan       []lanEndpoint
	stun      *netsim.STUNServer
}

// probeResult 一次 STUN 探测的结果
type probeResult struct {
	Name      string
	Private   netip.AddrPort
	Reflexive netip.AddrPort
	Mapping   netip.AddrPort
	Err       error
}

// Consistent 服务器看到的地址与防火墙映射表一致
func (r probeResult) Consistent() bool {
	return r.Err == nil && r.Reflexive == r.Mapping
}

// buildTopology 在 sim 的 Internet 上按声明顺序创建节点
func buildTopology(sim *netsim.Simulator, cfg *config.Config) (*topology, error) {
	t := &topology{
		internet: sim.Network(),
		byName:   make(map[string]*netsim.Firewall),
	}

	newEndpoint := func(ec config.EndpointConfig, uplink netsim.Node) (*netsim.Endpoint, error) {
		addr, err := netip.ParseAddrPort(ec.Addr)
		if err != nil {
			return nil, err
		}
		return netsim.NewEndpoint(addr, uplink,
			netsim.WithName(ec.Name),
			netsim.WithBandwidth(ec.Bandwidth))
	}

	for _, ec := range cfg.Public {
		ep, err := newEndpoint(ec, t.internet)
		if err != nil {
			return nil, fmt.Errorf("public %q: %w", ec.Name, err)
		}
		t.internet.AddPublic(ep)
		t.public = append(t.public, ep)
	}

	for _, fc := range cfg.Firewalls {
		var upstream netsim.Network = t.internet
		if fc.Upstream != "" {
			upstream = t.byName[fc.Upstream]
		}

		ip, err := netip.ParseAddr(fc.PublicIP)
		if err != nil {
			return nil, fmt.Errorf("firewall %q: %w", fc.Name, err)
		}
		fw, err := netsim.NewFirewall(sim.Config(), netip.AddrPortFrom(ip, 0), upstream)
		if err != nil {
			return nil, fmt.Errorf("firewall %q: %w", fc.Name, err)
		}
		t.byName[fc.Name] = fw
		t.firewalls = append(t.firewalls, fw)

		for _, ec := range fc.LAN {
			ep, err := newEndpoint(ec, fw)
			if err != nil {
				return nil, fmt.Errorf("%s/lan %q: %w", fc.Name, ec.Name, err)
			}
			fw.AddLocal(ep)
			t.lan = append(t.lan, lanEndpoint{ep: ep, fw: fw})
		}
		for _, ec := range fc.DMZ {
			ep, err := newEndpoint(ec, fw)
			if err != nil {
				return nil, fmt.Errorf("%s/dmz %q: %w", fc.Name, ec.Name, err)
			}
			fw.AddPublic(ep)
		}
	}

	if cfg.STUN.Enable {
		addr, err := netip.ParseAddrPort(cfg.STUN.Addr)
		if err != nil {
			return nil, fmt.Errorf("stun: %w", err)
		}
		if t.stun, err = netsim.NewSTUNServer(addr, t.internet); err != nil {
			return nil, fmt.Errorf("stun: %w", err)
		}
		t.internet.AddPublic(t.stun)
	}
	return t, nil
}

// probe 从每个 LAN 端点向 STUN 服务器发一个 Binding Request
//
// 返回顺序与 LAN 端点声明顺序一致。地址族与服务器不同的端点跳过。
func (t *topology) probe(ctx context.Context) []probeResult {
	if t.stun == nil {
		return nil
	}

	results := make([]probeResult, len(t.lan))
	g, ctx := errgroup.WithContext(ctx)
	for i, le := range t.lan {
		i, le := i, le
		results[i] = probeResult{Name: le.ep.Name(), Private: le.ep.Addr()}
		if le.ep.Addr().Addr().Is4() != t.stun.Addr().Addr().Is4() {
			results[i].Err = netsim.ErrFamilyMismatch
			continue
		}

		g.Go(func() error {
			results[i].Reflexive, results[i].Err = probeOne(ctx, le.ep, t.stun.Addr())
			results[i].Mapping = outermostMapping(le)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func probeOne(ctx context.Context, ep *netsim.Endpoint, server netip.AddrPort) (netip.AddrPort, error) {
	req, id, err := stunserver.BindingRequest()
	if err != nil {
		return netip.AddrPort{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ep.Send(server, req, 0)
	for {
		p, err := ep.Receive(ctx)
		if err != nil {
			return netip.AddrPort{}, err
		}
		if p.Source() != server {
			continue
		}
		return stunserver.ParseBindingResponseFor(p.Data(), id)
	}
}

// outermostMapping 沿防火墙链向上查找端点在公网上的映射
func outermostMapping(le lanEndpoint) netip.AddrPort {
	addr, ok := le.fw.MappingFor(le.ep.Addr())
	if !ok {
		return netip.AddrPort{}
	}
	for _, fw := range chainAbove(le.fw) {
		if addr, ok = fw.MappingFor(addr); !ok {
			return netip.AddrPort{}
		}
	}
	return addr
}

// chainAbove 返回 fw 之上的防火墙（由内向外）
func chainAbove(fw *netsim.Firewall) []*netsim.Firewall {
	var chain []*netsim.Firewall
	for {
		up, ok := fw.Upstream().(*netsim.Firewall)
		if !ok {
			return chain
		}
		chain = append(chain, up)
		fw = up
	}
}
