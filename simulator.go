package netsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netsim/internal/core/capture"
	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
)

var logger = log.Logger("netsim")

// stopTimeout 关闭时等待 fx OnStop 钩子的上限
const stopTimeout = 5 * time.Second

// Simulator 仿真网络门面
//
// 由 fx 装配 Runner、Internet、指标与可选的抓包写入器。
// New 之后即可搭建拓扑；Start 之后 Runner 开始按间隔推进。
type Simulator struct {
	mu      sync.Mutex
	app     *fx.App
	cfg     *Config
	started bool
	closed  bool

	runner   *simcore.Runner
	internet *simcore.Internet
	metrics  *simcore.Metrics
	capture  *capture.Writer
}

// New 创建仿真网络（Runner 处于暂停状态）
func New(opts ...Option) (*Simulator, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.toInternalConfig()
	if err != nil {
		return nil, err
	}

	sim := &Simulator{cfg: cfg}
	sim.app = buildFxApp(cfg, o, sim)
	if err := sim.app.Err(); err != nil {
		return nil, multierr.Append(fmt.Errorf("build fx app: %w", err), sim.release())
	}
	return sim, nil
}

// release 关闭装配失败时已经创建的 Runner 与抓包文件
func (s *Simulator) release() error {
	var err error
	if s.runner != nil {
		err = multierr.Append(err, s.runner.Close())
	}
	if s.capture != nil {
		err = multierr.Append(err, s.capture.Close())
	}
	return err
}

// Start 快捷启动函数
//
// 等价于 New() + Start()。
func Start(ctx context.Context, opts ...Option) (*Simulator, error) {
	sim, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := sim.Start(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("start simulator: %w", err), sim.Close())
	}
	return sim, nil
}

// Start 启动 Runner
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.app.Start(ctx); err != nil {
		logger.Error("仿真启动失败", "err", err)
		return err
	}
	s.started = true
	logger.Info("仿真已启动", "tick", s.cfg.TickInterval)
	return nil
}

// Close 停止 Runner 并关闭抓包文件，可重复调用
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.started {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		err = multierr.Append(err, s.app.Stop(ctx))
		cancel()
	} else if s.runner != nil {
		// 未启动时 fx 不会执行 OnStop
		err = multierr.Append(err, s.runner.Close())
	}

	if s.capture != nil {
		err = multierr.Append(err, s.capture.Close())
	}

	logger.Info("仿真已关闭", "ticks", s.Ticks())
	return err
}

// Network 共享的 Internet，所有拓扑从这里挂接
func (s *Simulator) Network() *Internet {
	return s.internet
}

// Runner 后台驱动器
func (s *Simulator) Runner() *Runner {
	return s.runner
}

// Config 仿真使用的配置（创建 Firewall 时传入以共享指标与 NAT 参数）
func (s *Simulator) Config() *Config {
	return s.cfg
}

// Metrics 仿真指标
func (s *Simulator) Metrics() *Metrics {
	return s.metrics
}

// Capture 抓包写入器，未启用时为 nil
func (s *Simulator) Capture() *CaptureWriter {
	return s.capture
}

// Ticks 已执行的 tick 数
func (s *Simulator) Ticks() uint64 {
	if s.runner == nil {
		return 0
	}
	return s.runner.Ticks()
}

// Pause 暂停推进
func (s *Simulator) Pause() {
	s.runner.Pause()
}

// Resume 恢复推进
func (s *Simulator) Resume() {
	s.runner.Start()
}
