package netsim

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置（可选）
	Config *Config `optional:"true"`

	// Registerer 指标注册器（可选）
	Registerer prometheus.Registerer `optional:"true"`

	// Clock 时间源（可选）
	Clock clock.Clock `optional:"true"`

	// Tap 路由观察者（可选）
	Tap Tap `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Runner   *Runner
	Internet *Internet
	Metrics  *Metrics
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = input.Config
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(input.Registerer)
	}

	var opts []RunnerOption
	if input.Clock != nil {
		cfg.Clock = input.Clock
		opts = append(opts, WithClock(input.Clock))
	}

	runner, err := NewRunner(cfg, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}
	if input.Tap != nil {
		runner.Network().SetTap(input.Tap)
	}

	return ModuleOutput{
		Runner:   runner,
		Internet: runner.Network(),
		Metrics:  cfg.Metrics,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("netsim",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 注册生命周期：启动时开始 tick，停止时关闭 Runner
func registerLifecycle(lc fx.Lifecycle, runner *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			runner.Start()
			logger.Info("netsim 模块启动")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			runner.Shutdown()
			select {
			case <-runner.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Info("netsim 模块停止", "ticks", runner.Ticks())
			return nil
		},
	})
}
