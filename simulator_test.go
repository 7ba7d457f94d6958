package netsim

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dep2p/go-netsim/pkg/lib/log"
	simtest "github.com/dep2p/go-netsim/tests/testutil"
)

func init() {
	log.Discard()
}

// TestSimulator_NATRoundTrip 测试门面装配出的仿真网络可以完成 NAT 往返
func TestSimulator_NATRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	sim, err := Start(ctx,
		WithTickInterval(time.Millisecond),
		WithRegisterer(reg),
	)
	require.NoError(t, err)
	defer sim.Close()

	internet := sim.Network()
	fw, err := NewFirewall(sim.Config(), netip.MustParseAddrPort("203.0.113.1:0"), internet)
	require.NoError(t, err)

	alice, err := NewEndpoint(netip.MustParseAddrPort("10.0.0.2:5000"), fw, WithName("alice"))
	require.NoError(t, err)
	fw.AddLocal(alice)

	bob, err := NewEndpoint(netip.MustParseAddrPort("198.51.100.7:4000"), internet, WithName("bob"),
		WithHandler(func(ep *Endpoint, p *Packet) {
			ep.Send(p.Source(), p.Data(), p.Timestamp())
		}))
	require.NoError(t, err)
	internet.AddPublic(bob)

	alice.Send(bob.Addr(), []byte("ping"), 0)

	got, err := alice.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got.Data()))

	mapped, ok := fw.MappingFor(alice.Addr())
	require.True(t, ok)
	assert.Equal(t, uint16(1000), mapped.Port())
	assert.Equal(t, 1.0, testutil.ToFloat64(sim.Metrics().NATMappings.WithLabelValues(fw.Name())))

	count, err := testutil.GatherAndCount(reg, "netsim_packets_routed_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

// TestSimulator_Lifecycle 测试启动、暂停、关闭
func TestSimulator_Lifecycle(t *testing.T) {
	sim, err := New(WithTickInterval(time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, sim.Runner())
	assert.Equal(t, StatePaused, sim.Runner().State())

	require.NoError(t, sim.Start(context.Background()))
	assert.ErrorIs(t, sim.Start(context.Background()), ErrAlreadyStarted)

	simtest.Eventually(t, time.Second, func() bool {
		return sim.Ticks() > 0
	}, "runner should tick after Start")

	sim.Pause()
	simtest.Eventually(t, time.Second, func() bool {
		return sim.Runner().State() == StatePaused
	}, "runner should pause")
	sim.Resume()

	require.NoError(t, sim.Close())
	require.NoError(t, sim.Close())
	assert.Equal(t, StateQuit, sim.Runner().State())
	assert.ErrorIs(t, sim.Start(context.Background()), ErrClosed)
}

// TestSimulator_CloseWithoutStart 测试未启动时关闭也能回收 Runner
func TestSimulator_CloseWithoutStart(t *testing.T) {
	sim, err := New()
	require.NoError(t, err)

	require.NoError(t, sim.Close())
	select {
	case <-sim.Runner().Done():
	case <-time.After(time.Second):
		t.Fatal("runner goroutine leaked")
	}
}

// TestSimulator_Capture 测试抓包文件在关闭后完整落盘
func TestSimulator_Capture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.pcap")
	sim, err := Start(context.Background(),
		WithTickInterval(time.Millisecond),
		WithCapture(path),
	)
	require.NoError(t, err)
	require.NotNil(t, sim.Capture())

	internet := sim.Network()
	a, err := NewEndpoint(netip.MustParseAddrPort("198.51.100.1:1"), internet)
	require.NoError(t, err)
	b, err := NewEndpoint(netip.MustParseAddrPort("198.51.100.2:2"), internet)
	require.NoError(t, err)
	internet.AddPublic(a)
	internet.AddPublic(b)

	a.Send(b.Addr(), []byte("hello"), 0)
	simtest.Eventually(t, time.Second, func() bool {
		return b.Received() == 1
	}, "packet should be delivered")

	require.NoError(t, sim.Close())
	assert.Equal(t, uint64(1), sim.Capture().Written())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(24), "header plus one record")
}

// TestSimulator_WithConfig 测试完整配置被复制并与选项合并
func TestSimulator_WithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FirstPublicPort = 40000

	sim, err := New(WithConfig(cfg), WithQueueCapacity(64))
	require.NoError(t, err)
	defer sim.Close()

	assert.Equal(t, uint16(40000), sim.Config().FirstPublicPort)
	assert.Equal(t, 64, sim.Config().QueueCapacity)
	assert.Equal(t, 64, sim.Network().Cap())
	assert.Equal(t, DefaultConfig().QueueCapacity, cfg.QueueCapacity, "caller's config untouched")
}

// TestNew_InvalidOptions 测试无效选项
func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithTickInterval(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithConfig(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(WithCapture(""))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := DefaultConfig()
	bad.MaxPortAttempts = 0
	_, err = New(WithConfig(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestStart_CaptureFailure 测试抓包文件无法创建时启动失败
func TestStart_CaptureFailure(t *testing.T) {
	_, err := Start(context.Background(),
		WithCapture(filepath.Join(t.TempDir(), "missing", "x.pcap")))
	assert.Error(t, err)
}

// TestNew_FxFailureReleasesResources 测试装配失败时 Runner 退出且抓包文件被关闭
func TestNew_FxFailureReleasesResources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.pcap")
	boom := errors.New("boom")

	var runner *Runner
	sim, err := New(
		WithCapture(path),
		WithFxOptions(
			fx.Invoke(func(r *Runner) { runner = r }),
			fx.Invoke(func() error { return boom }),
		),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), boom.Error())
	assert.Nil(t, sim)

	require.NotNil(t, runner)
	select {
	case <-runner.Done():
	case <-time.After(time.Second):
		t.Fatal("runner goroutine still alive after New failed")
	}
	assert.Equal(t, StateQuit, runner.State())

	// 关闭时缓冲的文件头被刷出
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24), info.Size())
}
