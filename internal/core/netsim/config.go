package netsim

import (
	"errors"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
)

// 默认值
const (
	// DefaultQueueCapacity 网关队列默认容量
	DefaultQueueCapacity = 2048

	// DefaultTickInterval Runner 默认 tick 间隔
	DefaultTickInterval = 10 * time.Millisecond

	// DefaultPausePollInterval 暂停状态下的轮询间隔
	DefaultPausePollInterval = 10 * time.Millisecond

	// DefaultFirstPublicPort NAT 分配的第一个公网端口
	DefaultFirstPublicPort = 1000

	// DefaultMaxPortAttempts 单次分配最多尝试的候选端口数
	DefaultMaxPortAttempts = 1024
)

// DefaultExcludedRanges 防火墙默认视为不可路由的地址段
//
// 用于模拟拓扑之外的私有子网：整个 172/8 以及 IPv6 链路本地前缀。
func DefaultExcludedRanges() []netip.Prefix {
	return []netip.Prefix{
		netip.MustParsePrefix("172.0.0.0/8"),
		netip.MustParsePrefix("fe80::/16"),
	}
}

// Config 仿真网络配置
type Config struct {
	// QueueCapacity 每个网关入队队列容量
	QueueCapacity int

	// TickInterval Runner 两次 Process 之间的间隔
	TickInterval time.Duration

	// PausePollInterval 暂停时检查命令的间隔
	PausePollInterval time.Duration

	// FirstPublicPort NAT 端口计数器初始值
	FirstPublicPort uint16

	// MaxPortAttempts 分配公网端口时最多尝试的候选数
	MaxPortAttempts int

	// ExcludedRanges 防火墙直接丢弃的目标地址段
	ExcludedRanges []netip.Prefix

	// Metrics 指标（可选，nil 时使用未注册的指标）
	Metrics *Metrics

	// Clock 时间源（可选，nil 时使用系统时钟）
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		QueueCapacity:     DefaultQueueCapacity,
		TickInterval:      DefaultTickInterval,
		PausePollInterval: DefaultPausePollInterval,
		FirstPublicPort:   DefaultFirstPublicPort,
		MaxPortAttempts:   DefaultMaxPortAttempts,
		ExcludedRanges:    DefaultExcludedRanges(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}

	if c.QueueCapacity <= 0 {
		return &ConfigError{Field: "QueueCapacity", Cause: errors.New("must be positive")}
	}

	if c.TickInterval <= 0 {
		return &ConfigError{Field: "TickInterval", Cause: errors.New("must be positive")}
	}

	if c.PausePollInterval <= 0 {
		return &ConfigError{Field: "PausePollInterval", Cause: errors.New("must be positive")}
	}

	if c.FirstPublicPort == 0 {
		return &ConfigError{Field: "FirstPublicPort", Cause: errors.New("must be non-zero")}
	}

	if c.MaxPortAttempts <= 0 {
		return &ConfigError{Field: "MaxPortAttempts", Cause: errors.New("must be positive")}
	}

	for _, p := range c.ExcludedRanges {
		if !p.IsValid() {
			return &ConfigError{Field: "ExcludedRanges", Cause: errors.New("invalid prefix")}
		}
	}

	return nil
}

// resolveConfig 处理 nil 配置并校验，返回设备私有的副本
//
// 调用方的 Config 不被修改，多个设备可以并发共享同一份配置。
// 未配置 Metrics 时副本使用未注册的实例。
func resolveConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := *cfg
	if resolved.Metrics == nil {
		resolved.Metrics = NewMetrics(nil)
	}
	if resolved.Clock == nil {
		resolved.Clock = clock.New()
	}
	return &resolved, nil
}

// Option 配置选项函数
type Option func(*Config) error

// WithQueueCapacity 设置网关队列容量
func WithQueueCapacity(capacity int) Option {
	return func(c *Config) error {
		if capacity <= 0 {
			return &ConfigError{Field: "QueueCapacity", Cause: errors.New("must be positive")}
		}
		c.QueueCapacity = capacity
		return nil
	}
}

// WithTickInterval 设置 tick 间隔
func WithTickInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return &ConfigError{Field: "TickInterval", Cause: errors.New("must be positive")}
		}
		c.TickInterval = interval
		return nil
	}
}

// WithFirstPublicPort 设置 NAT 第一个公网端口
func WithFirstPublicPort(port uint16) Option {
	return func(c *Config) error {
		c.FirstPublicPort = port
		return nil
	}
}

// WithMaxPortAttempts 设置端口分配尝试上限
func WithMaxPortAttempts(n int) Option {
	return func(c *Config) error {
		c.MaxPortAttempts = n
		return nil
	}
}

// WithExcludedRanges 替换防火墙排除地址段
func WithExcludedRanges(prefixes ...netip.Prefix) Option {
	return func(c *Config) error {
		c.ExcludedRanges = append([]netip.Prefix(nil), prefixes...)
		return nil
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(c *Config) error {
		c.Metrics = m
		return nil
	}
}

// ApplyOptions 应用配置选项
func (c *Config) ApplyOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return c.Validate()
}
