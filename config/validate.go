package config

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrInvalidTopology 拓扑配置无效
var ErrInvalidTopology = errors.New("config: invalid topology")

// Validate 验证配置
//
// 检查地址格式、名称唯一性以及 Upstream 引用（只能引用更早声明的防火墙，
// 因此不会出现环）。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}

	names := make(map[string]struct{})
	addrs := make(map[netip.AddrPort]string)

	checkEndpoint := func(where string, ep EndpointConfig) error {
		if ep.Name == "" {
			return fmt.Errorf("%w: %s: endpoint without name", ErrInvalidTopology, where)
		}
		if _, dup := names[ep.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidTopology, ep.Name)
		}
		names[ep.Name] = struct{}{}

		addr, err := netip.ParseAddrPort(ep.Addr)
		if err != nil {
			return fmt.Errorf("%w: %s: endpoint %q: %v", ErrInvalidTopology, where, ep.Name, err)
		}
		if owner, dup := addrs[addr]; dup {
			return fmt.Errorf("%w: %s already used by %q", ErrInvalidTopology, addr, owner)
		}
		addrs[addr] = ep.Name
		if ep.Bandwidth < 0 {
			return fmt.Errorf("%w: endpoint %q: negative bandwidth", ErrInvalidTopology, ep.Name)
		}
		return nil
	}

	for _, ep := range c.Public {
		if err := checkEndpoint("public", ep); err != nil {
			return err
		}
	}

	for _, fw := range c.Firewalls {
		if fw.Name == "" {
			return fmt.Errorf("%w: firewall without name", ErrInvalidTopology)
		}
		if _, dup := names[fw.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidTopology, fw.Name)
		}
		if fw.Upstream != "" {
			if _, ok := names[fw.Upstream]; !ok || !c.isFirewall(fw.Upstream) {
				return fmt.Errorf("%w: firewall %q: unknown upstream %q", ErrInvalidTopology, fw.Name, fw.Upstream)
			}
		}
		names[fw.Name] = struct{}{}

		if _, err := netip.ParseAddr(fw.PublicIP); err != nil {
			return fmt.Errorf("%w: firewall %q: %v", ErrInvalidTopology, fw.Name, err)
		}
		for _, ep := range fw.LAN {
			if err := checkEndpoint(fw.Name+"/lan", ep); err != nil {
				return err
			}
		}
		for _, ep := range fw.DMZ {
			if err := checkEndpoint(fw.Name+"/dmz", ep); err != nil {
				return err
			}
		}
	}

	if c.STUN.Enable {
		addr, err := netip.ParseAddrPort(c.STUN.Addr)
		if err != nil {
			return fmt.Errorf("%w: stun: %v", ErrInvalidTopology, err)
		}
		if owner, dup := addrs[addr]; dup {
			return fmt.Errorf("%w: stun address %s already used by %q", ErrInvalidTopology, addr, owner)
		}
	}
	return c.checkPublicIPs()
}

// checkPublicIPs 检查防火墙公网 IP 不与同一网络上的其他节点重叠
//
// 防火墙按 IP 认领所有端口，同一网络上再出现该 IP 的节点永远收不到包。
// 调用前地址已经通过解析校验。
func (c *Config) checkPublicIPs() error {
	owners := make(map[netip.Addr]string, len(c.Firewalls))
	// network -> 该网络上的防火墙公网 IP；"" 表示 Internet
	onNetwork := make(map[string]map[netip.Addr]string)
	for _, fw := range c.Firewalls {
		ip := netip.MustParseAddr(fw.PublicIP).Unmap()
		if owner, dup := owners[ip]; dup {
			return fmt.Errorf("%w: firewall %q: public ip %s already used by %q", ErrInvalidTopology, fw.Name, ip, owner)
		}
		owners[ip] = fw.Name
		if onNetwork[fw.Upstream] == nil {
			onNetwork[fw.Upstream] = make(map[netip.Addr]string)
		}
		onNetwork[fw.Upstream][ip] = fw.Name
	}

	shadowed := func(network, name, addr string) error {
		ip := netip.MustParseAddrPort(addr).Addr().Unmap()
		if owner, ok := onNetwork[network][ip]; ok {
			return fmt.Errorf("%w: %q at %s is shadowed by firewall %q", ErrInvalidTopology, name, addr, owner)
		}
		return nil
	}

	for _, ep := range c.Public {
		if err := shadowed("", ep.Name, ep.Addr); err != nil {
			return err
		}
	}
	for _, fw := range c.Firewalls {
		for _, ep := range fw.LAN {
			if err := shadowed(fw.Name, ep.Name, ep.Addr); err != nil {
				return err
			}
		}
	}
	if c.STUN.Enable {
		return shadowed("", "stun", c.STUN.Addr)
	}
	return nil
}

// Validate 验证仿真参数
func (s SimulationConfig) Validate() error {
	if err := s.TickInterval.check("tick_interval", true); err != nil {
		return err
	}
	if err := s.RunFor.check("run_for", false); err != nil {
		return err
	}
	if s.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive", ErrInvalidTopology)
	}
	if s.FirstPublicPort == 0 {
		return fmt.Errorf("%w: first_public_port must be non-zero", ErrInvalidTopology)
	}
	if s.MaxPortAttempts <= 0 {
		return fmt.Errorf("%w: max_port_attempts must be positive", ErrInvalidTopology)
	}
	for _, r := range s.ExcludedRanges {
		if _, err := netip.ParsePrefix(r); err != nil {
			return fmt.Errorf("%w: excluded range %q: %v", ErrInvalidTopology, r, err)
		}
	}
	return nil
}

// isFirewall 名称是否属于已声明的防火墙
func (c *Config) isFirewall(name string) bool {
	for _, fw := range c.Firewalls {
		if fw.Name == name {
			return true
		}
	}
	return false
}
