package netsim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// State Runner 状态
type State int32

const (
	// StatePaused 暂停（初始状态）
	StatePaused State = iota
	// StateRunning 运行中
	StateRunning
	// StateQuit 已退出（终态）
	StateQuit
)

func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StateRunning:
		return "running"
	case StateQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Runner 在后台 goroutine 上按固定间隔驱动 Internet.Process
//
// Start/Pause/Shutdown 只设置命令，后台循环在下一次检查时响应，
// 并在行动之前更新可观察状态 State()。
type Runner struct {
	cfg      *Config
	clock    clock.Clock
	internet *Internet

	command atomic.Int32
	state   atomic.Int32
	ticks   atomic.Uint64

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// RunnerOption Runner 选项
type RunnerOption func(*Runner)

// WithClock 设置时间源
func WithClock(clk clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clk
	}
}

// WithInternet 使用已有的 Internet，而不是新建
func WithInternet(internet *Internet) RunnerOption {
	return func(r *Runner) {
		r.internet = internet
	}
}

// NewRunner 创建 Runner 并启动后台 goroutine（初始为暂停）
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	cfg, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:   cfg,
		clock: cfg.Clock,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	cfg.Clock = r.clock
	if r.internet == nil {
		if r.internet, err = NewInternet(cfg); err != nil {
			return nil, err
		}
	}

	r.command.Store(int32(StatePaused))
	r.state.Store(int32(StatePaused))

	go r.run()
	return r, nil
}

// Start 请求进入运行状态
func (r *Runner) Start() {
	r.setCommand(StateRunning)
}

// Pause 请求暂停
func (r *Runner) Pause() {
	r.setCommand(StatePaused)
}

// Shutdown 请求退出，不可逆
func (r *Runner) Shutdown() {
	r.command.Store(int32(StateQuit))
	r.notify()
}

// Close 请求退出并等待后台 goroutine 结束，可重复调用
func (r *Runner) Close() error {
	r.closeOnce.Do(r.Shutdown)
	<-r.done
	return nil
}

// Done 后台 goroutine 退出后关闭
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// State 后台循环最近一次观察到并执行的状态
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Command 当前请求的状态
func (r *Runner) Command() State {
	return State(r.command.Load())
}

// Ticks 已执行的 Process 次数
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// Network 返回共享的 Internet，多个测试夹具可以同时挂接节点
func (r *Runner) Network() *Internet {
	return r.internet
}

// setCommand 设置命令；退出后的命令被忽略
func (r *Runner) setCommand(s State) {
	for {
		cur := r.command.Load()
		if State(cur) == StateQuit {
			return
		}
		if r.command.CompareAndSwap(cur, int32(s)) {
			r.notify()
			return
		}
	}
}

// notify 唤醒正在等待的后台循环
func (r *Runner) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) run() {
	defer close(r.done)
	logger.Debug("runner 启动", "interval", r.cfg.TickInterval)

	for {
		// 丢弃上一轮命令留下的唤醒信号，只让之后的命令变化打断 sleep
		r.drainWake()

		switch r.Command() {
		case StateQuit:
			r.state.Store(int32(StateQuit))
			logger.Debug("runner 退出", "ticks", r.Ticks())
			return

		case StateRunning:
			r.state.Store(int32(StateRunning))
			r.internet.Process(uint64(r.clock.Now().UnixNano()))
			r.ticks.Add(1)
			r.cfg.Metrics.Ticks.Inc()
			r.sleep(r.cfg.TickInterval)

		default:
			r.state.Store(int32(StatePaused))
			for r.Command() == StatePaused {
				r.sleep(r.cfg.PausePollInterval)
			}
		}
	}
}

func (r *Runner) drainWake() {
	select {
	case <-r.wake:
	default:
	}
}

// sleep 等待 d，命令变化时提前返回
func (r *Runner) sleep(d time.Duration) {
	timer := r.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-r.wake:
	}
}
