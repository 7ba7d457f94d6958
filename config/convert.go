package config

import (
	"net/netip"

	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
)

// ToSimConfig 转换为仿真内核配置
func (c *Config) ToSimConfig() (*simcore.Config, error) {
	s := c.Simulation
	cfg := simcore.DefaultConfig()

	opts := []simcore.Option{
		simcore.WithTickInterval(s.TickInterval.Duration()),
		simcore.WithQueueCapacity(s.QueueCapacity),
		simcore.WithFirstPublicPort(s.FirstPublicPort),
		simcore.WithMaxPortAttempts(s.MaxPortAttempts),
	}
	if s.ExcludedRanges != nil {
		prefixes := make([]netip.Prefix, 0, len(s.ExcludedRanges))
		for _, r := range s.ExcludedRanges {
			p, err := netip.ParsePrefix(r)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p)
		}
		opts = append(opts, simcore.WithExcludedRanges(prefixes...))
	}

	if err := cfg.ApplyOptions(opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
