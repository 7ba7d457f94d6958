package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doubleNAT = `{
  "simulation": {"tick_interval": "5ms", "run_for": "2s", "first_public_port": 20000},
  "public": [{"name": "bob", "addr": "198.51.100.7:4000"}],
  "firewalls": [
    {
      "name": "isp",
      "public_ip": "203.0.113.1",
      "lan": [{"name": "alice", "addr": "10.0.0.2:5000", "bandwidth": 125000}]
    },
    {
      "name": "home",
      "public_ip": "10.0.0.100",
      "upstream": "isp",
      "lan": [{"name": "dave", "addr": "192.168.1.10:7000"}],
      "dmz": [{"name": "cam", "addr": "10.0.0.101:554"}]
    }
  ],
  "stun": {"enable": true, "addr": "198.51.100.1:3478"}
}`

// TestNewConfig 测试默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Millisecond, cfg.Simulation.TickInterval.Duration())
	assert.True(t, cfg.STUN.Enable)
	assert.Zero(t, cfg.EndpointCount())
}

// TestFromJSON 测试解析完整拓扑
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(doubleNAT))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Simulation.TickInterval.Duration())
	assert.Equal(t, 2*time.Second, cfg.Simulation.RunFor.Duration())
	assert.Equal(t, uint16(20000), cfg.Simulation.FirstPublicPort)
	assert.Equal(t, 2048, cfg.Simulation.QueueCapacity, "absent fields keep defaults")
	require.Len(t, cfg.Firewalls, 2)
	assert.Equal(t, "isp", cfg.Firewalls[1].Upstream)
	assert.Equal(t, int64(125000), cfg.Firewalls[0].LAN[0].Bandwidth)
	assert.Equal(t, 4, cfg.EndpointCount())
}

// TestToSimConfig 测试转换为仿真内核配置
func TestToSimConfig(t *testing.T) {
	cfg, err := FromJSON([]byte(doubleNAT))
	require.NoError(t, err)

	sim, err := cfg.ToSimConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, sim.TickInterval)
	assert.Equal(t, uint16(20000), sim.FirstPublicPort)
	assert.Len(t, sim.ExcludedRanges, 2, "defaults kept when unset")

	cfg.Simulation.ExcludedRanges = []string{"100.64.0.0/10"}
	sim, err = cfg.ToSimConfig()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("100.64.0.0/10")}, sim.ExcludedRanges)
}

// TestValidate_Errors 测试拓扑错误
func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad tick", func(c *Config) { c.Simulation.TickInterval = 0 }},
		{"bad range", func(c *Config) { c.Simulation.ExcludedRanges = []string{"nope"} }},
		{"unnamed endpoint", func(c *Config) { c.Public = []EndpointConfig{{Addr: "198.51.100.2:1"}} }},
		{"bad addr", func(c *Config) { c.Public = []EndpointConfig{{Name: "x", Addr: "198.51.100.2"}} }},
		{"duplicate addr", func(c *Config) {
			c.Public = []EndpointConfig{{Name: "a", Addr: "198.51.100.2:1"}, {Name: "b", Addr: "198.51.100.2:1"}}
		}},
		{"duplicate name", func(c *Config) {
			c.Public = []EndpointConfig{{Name: "a", Addr: "198.51.100.2:1"}, {Name: "a", Addr: "198.51.100.2:2"}}
		}},
		{"unknown upstream", func(c *Config) {
			c.Firewalls = []FirewallConfig{{Name: "fw", PublicIP: "203.0.113.1", Upstream: "nope"}}
		}},
		{"upstream declared later", func(c *Config) {
			c.Firewalls = []FirewallConfig{
				{Name: "inner", PublicIP: "10.0.0.1", Upstream: "outer"},
				{Name: "outer", PublicIP: "203.0.113.1"},
			}
		}},
		{"upstream is endpoint", func(c *Config) {
			c.Public = []EndpointConfig{{Name: "bob", Addr: "198.51.100.2:1"}}
			c.Firewalls = []FirewallConfig{{Name: "fw", PublicIP: "203.0.113.1", Upstream: "bob"}}
		}},
		{"bad public ip", func(c *Config) { c.Firewalls = []FirewallConfig{{Name: "fw", PublicIP: "x"}} }},
		{"stun collision", func(c *Config) {
			c.Public = []EndpointConfig{{Name: "bob", Addr: c.STUN.Addr}}
		}},
		{"duplicate public ip", func(c *Config) {
			c.Firewalls = []FirewallConfig{
				{Name: "a", PublicIP: "203.0.113.1"},
				{Name: "b", PublicIP: "203.0.113.1"},
			}
		}},
		{"endpoint on firewall ip", func(c *Config) {
			c.Public = []EndpointConfig{{Name: "bob", Addr: "203.0.113.1:4000"}}
			c.Firewalls = []FirewallConfig{{Name: "fw", PublicIP: "203.0.113.1"}}
		}},
		{"lan endpoint on nested firewall ip", func(c *Config) {
			c.Firewalls = []FirewallConfig{
				{Name: "isp", PublicIP: "203.0.113.1", LAN: []EndpointConfig{{Name: "alice", Addr: "10.0.0.100:5000"}}},
				{Name: "home", PublicIP: "10.0.0.100", Upstream: "isp"},
			}
		}},
		{"stun on firewall ip", func(c *Config) {
			c.Firewalls = []FirewallConfig{{Name: "fw", PublicIP: "198.51.100.1"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidTopology)
		})
	}
}

// TestLoad 测试从文件加载与往返
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(doubleNAT), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tick_interval": "5ms"`)

	again, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = FromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"150ms"`)))
	assert.Equal(t, 150*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Equal(t, "1µs", d.String())

	// 负值在解析时即被拒绝，原值保留
	assert.Error(t, d.UnmarshalJSON([]byte(`"-5ms"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`-1`)))
	assert.Equal(t, time.Microsecond, d.Duration())
}

func TestDuration_Check(t *testing.T) {
	assert.NoError(t, Duration(0).check("run_for", false))
	assert.ErrorIs(t, Duration(0).check("tick_interval", true), ErrInvalidTopology)
	assert.ErrorIs(t, Duration(-1).check("run_for", false), ErrInvalidTopology)

	_, err := FromJSON([]byte(`{"simulation": {"tick_interval": "0s"}}`))
	assert.ErrorIs(t, err, ErrInvalidTopology)
	_, err = FromJSON([]byte(`{"simulation": {"tick_interval": "-1ms"}}`))
	assert.Error(t, err)
}
