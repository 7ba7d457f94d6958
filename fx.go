package netsim

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netsim/internal/core/capture"
	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
)

var fxLogger = log.Logger("netsim/fx")

// components fx 装配出的组件
type components struct {
	fx.In

	Runner   *simcore.Runner
	Internet *simcore.Internet
	Metrics  *simcore.Metrics
	Capture  *capture.Writer `optional:"true"`
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序：配置 → 可选依赖（注册器、时钟、抓包）→ netsim 模块 → 用户扩展。
func buildFxApp(cfg *Config, o *options, sim *Simulator) *fx.App {
	modules := []fx.Option{
		fx.Supply(cfg),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 可选依赖
	// ════════════════════════════════════════════════════════════════════════
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	if o.capturePath != "" {
		modules = append(modules, fx.Provide(provideCapture(o.capturePath, sim)))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 核心模块
	// ════════════════════════════════════════════════════════════════════════
	// 先于用户扩展取出组件，用户 Invoke 失败时 New 仍能释放它们
	modules = append(modules,
		simcore.Module(),
		fx.Invoke(func(c components) {
			sim.runner = c.Runner
			sim.internet = c.Internet
			sim.metrics = c.Metrics
			sim.capture = c.Capture
		}),
	)

	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// provideCapture 创建 pcap 写入器，同时作为 Internet 的 Tap 提供
//
// 写入器创建后立即记到 sim 上，后续装配失败时由 New 关闭文件。
func provideCapture(path string, sim *Simulator) func() (*capture.Writer, simcore.Tap, error) {
	return func() (*capture.Writer, simcore.Tap, error) {
		w, err := capture.Create(path)
		if err != nil {
			fxLogger.Error("创建抓包文件失败", "path", path, "err", err)
			return nil, nil, err
		}
		sim.capture = w
		return w, w, nil
	}
}
