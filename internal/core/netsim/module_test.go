package netsim

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	simtest "github.com/dep2p/go-netsim/tests/testutil"
)

func quietLogger() fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	})
}

// TestModule_Lifecycle 测试 fx 生命周期驱动 Runner
func TestModule_Lifecycle(t *testing.T) {
	cfg := testConfig(t, WithTickInterval(time.Millisecond))

	var (
		runner   *Runner
		internet *Internet
		metrics  *Metrics
	)
	app := fxtest.New(t,
		quietLogger(),
		fx.Supply(cfg),
		Module(),
		fx.Populate(&runner, &internet, &metrics),
	)

	require.NotNil(t, runner)
	assert.Same(t, runner.Network(), internet)
	assert.Same(t, cfg.Metrics, metrics)
	assert.Equal(t, StatePaused, runner.State())

	app.RequireStart()
	simtest.Eventually(t, time.Second, func() bool {
		return runner.State() == StateRunning
	}, "OnStart should start the runner")

	app.RequireStop()
	assert.Equal(t, StateQuit, runner.State())
}

// TestModule_Registerer 测试可选注册器接收指标
func TestModule_Registerer(t *testing.T) {
	reg := prometheus.NewRegistry()

	var internet *Internet
	app := fxtest.New(t,
		quietLogger(),
		fx.Provide(func() prometheus.Registerer { return reg }),
		Module(),
		fx.Populate(&internet),
	)
	app.RequireStart()
	defer app.RequireStop()

	a, err := NewEndpoint(addr("198.51.100.1:1"), internet)
	require.NoError(t, err)
	internet.AddPublic(a)
	a.Send(addr("198.51.100.2:2"), []byte("x"), 0)

	simtest.Eventually(t, time.Second, func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, mf := range families {
			if mf.GetName() == "netsim_packets_dropped_total" {
				return true
			}
		}
		return false
	}, "dropped counter should be exported")
}

// TestModule_InvalidConfig 测试无效配置使启动失败
func TestModule_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueCapacity = -1

	app := fx.New(
		quietLogger(),
		fx.Supply(cfg),
		Module(),
		fx.Invoke(func(*Runner) {}),
	)
	err := app.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QueueCapacity")
}
