package netsim

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 完整配置（WithConfig），其余选项在其基础上覆盖
	config *Config

	tickInterval  time.Duration
	queueCapacity int

	// 指标注册器
	registerer prometheus.Registerer

	// 时间源（测试中使用 clock.NewMock）
	clock clock.Clock

	// pcap 输出路径
	capturePath string

	// 用户自定义 fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// toInternalConfig 转换为内部配置
func (o *options) toInternalConfig() (*Config, error) {
	cfg := simcore.DefaultConfig()
	if o.config != nil {
		copied := *o.config
		cfg = &copied
	}

	var coreOpts []simcore.Option
	if o.tickInterval > 0 {
		coreOpts = append(coreOpts, simcore.WithTickInterval(o.tickInterval))
	}
	if o.queueCapacity > 0 {
		coreOpts = append(coreOpts, simcore.WithQueueCapacity(o.queueCapacity))
	}
	if err := cfg.ApplyOptions(coreOpts...); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// WithConfig 使用完整配置
//
// 配置在创建时被复制，之后修改 cfg 不影响仿真。
func WithConfig(cfg *Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrInvalidConfig
		}
		o.config = cfg
		return nil
	}
}

// WithTickInterval 设置 Runner tick 间隔
func WithTickInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
		}
		o.tickInterval = d
		return nil
	}
}

// WithQueueCapacity 设置每个网关的队列容量
func WithQueueCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: queue capacity must be positive", ErrInvalidConfig)
		}
		o.queueCapacity = n
		return nil
	}
}

// WithRegisterer 把仿真指标注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 设置 Runner 的时间源
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithCapture 把 Internet 路由的每个包写入 pcap 文件
func WithCapture(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("%w: empty capture path", ErrInvalidConfig)
		}
		o.capturePath = path
		return nil
	}
}

// WithFxOptions 追加自定义 fx 选项（高级用法）
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
