// Package config 提供仿真拓扑的 JSON 配置
//
// 一个配置文件描述一次完整的仿真：
//   - Simulation: Runner 与 NAT 参数
//   - Public: 直接挂在 Internet 上的公网端点
//   - Firewalls: 防火墙及其 LAN / DMZ 端点，可通过 Upstream 嵌套（双重 NAT）
//   - STUN: 可选的 STUN 服务器，用于探测每个 LAN 端点的公网映射
//
// 使用示例：
//
//	cfg, err := config.Load("topology.json")
//	if err != nil {
//	    return err
//	}
//	simCfg, err := cfg.ToSimConfig()
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config 仿真拓扑配置
type Config struct {
	// Simulation 仿真参数
	Simulation SimulationConfig `json:"simulation"`

	// Public 公网端点
	Public []EndpointConfig `json:"public,omitempty"`

	// Firewalls 防火墙，按声明顺序创建
	Firewalls []FirewallConfig `json:"firewalls,omitempty"`

	// STUN STUN 服务器
	STUN STUNConfig `json:"stun"`
}

// SimulationConfig Runner 与 NAT 参数
type SimulationConfig struct {
	// TickInterval tick 间隔
	TickInterval Duration `json:"tick_interval"`

	// RunFor CLI 运行时长
	RunFor Duration `json:"run_for"`

	// QueueCapacity 网关队列容量
	QueueCapacity int `json:"queue_capacity"`

	// FirstPublicPort NAT 分配的第一个公网端口
	FirstPublicPort uint16 `json:"first_public_port"`

	// MaxPortAttempts 单次分配最多尝试的候选端口数
	MaxPortAttempts int `json:"max_port_attempts"`

	// ExcludedRanges 防火墙丢弃的目标地址段（CIDR）；nil 使用默认值
	ExcludedRanges []string `json:"excluded_ranges,omitempty"`
}

// FirewallConfig 防火墙配置
type FirewallConfig struct {
	// Name 防火墙名称，供 Upstream 引用
	Name string `json:"name"`

	// PublicIP 公网 IP
	PublicIP string `json:"public_ip"`

	// Upstream 上游防火墙名称，空表示直接挂在 Internet 上
	Upstream string `json:"upstream,omitempty"`

	// LAN 私网端点
	LAN []EndpointConfig `json:"lan,omitempty"`

	// DMZ 公网侧端点（无地址转换）
	DMZ []EndpointConfig `json:"dmz,omitempty"`
}

// EndpointConfig 端点配置
type EndpointConfig struct {
	// Name 端点名称（也是链路名称）
	Name string `json:"name"`

	// Addr ip:port
	Addr string `json:"addr"`

	// Bandwidth downlink 带宽上限（字节/秒），0 不限速
	Bandwidth int64 `json:"bandwidth,omitempty"`
}

// STUNConfig STUN 服务器配置
type STUNConfig struct {
	// Enable 是否创建 STUN 服务器
	Enable bool `json:"enable"`

	// Addr 服务器地址，挂在 Internet 上
	Addr string `json:"addr"`
}

// NewConfig 创建默认配置：空拓扑 + 一个 STUN 服务器
func NewConfig() *Config {
	return &Config{
		Simulation: DefaultSimulationConfig(),
		STUN: STUNConfig{
			Enable: true,
			Addr:   "198.51.100.1:3478",
		},
	}
}

// DefaultSimulationConfig 默认仿真参数
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickInterval:    Duration(10 * time.Millisecond),
		RunFor:          Duration(time.Second),
		QueueCapacity:   2048,
		FirstPublicPort: 1000,
		MaxPortAttempts: 1024,
	}
}

// FromJSON 从 JSON 解析配置，未出现的字段保留默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// EndpointCount 所有端点数量（不含 STUN 服务器）
func (c *Config) EndpointCount() int {
	n := len(c.Public)
	for _, fw := range c.Firewalls {
		n += len(fw.LAN) + len(fw.DMZ)
	}
	return n
}
