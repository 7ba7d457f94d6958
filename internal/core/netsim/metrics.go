package netsim

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// 丢包原因
const (
	DropQueueFull      = "queue_full"
	DropUnreachable    = "unreachable"
	DropNoMapping      = "no_mapping"
	DropExcluded       = "excluded"
	DropPortsExhausted = "ports_exhausted"
	DropFamilyMismatch = "family_mismatch"
)

// 路由路径
const (
	PathDirect   = "direct"   // Internet 直接投递
	PathInbound  = "inbound"  // 防火墙公网 -> 私网（已有映射）
	PathLocal    = "local"    // 防火墙私网内直达
	PathDMZ      = "dmz"      // 防火墙出站到 DMZ 节点
	PathUpstream = "upstream" // 防火墙出站到上游
)

// Metrics 仿真网络指标
type Metrics struct {
	Enqueued    *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Routed      *prometheus.CounterVec
	NATMappings *prometheus.GaugeVec
	Ticks       prometheus.Counter
}

// NewMetrics 创建指标并注册到 reg
//
// reg 为 nil 时不注册。重复注册同名指标时复用已注册的收集器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsim_packets_enqueued_total",
				Help: "packets accepted into a gateway queue",
			},
			[]string{"device"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsim_packets_dropped_total",
				Help: "packets dropped by the simulator",
			},
			[]string{"device", "reason"},
		),
		Routed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsim_packets_routed_total",
				Help: "packets forwarded by a routing device",
			},
			[]string{"device", "path"},
		),
		NATMappings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netsim_nat_mappings",
				Help: "live NAT port mappings",
			},
			[]string{"device"},
		),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsim_ticks_total",
			Help: "simulation ticks processed by runners",
		}),
	}

	if reg != nil {
		m.Enqueued = register(reg, m.Enqueued)
		m.Dropped = register(reg, m.Dropped)
		m.Routed = register(reg, m.Routed)
		m.NATMappings = register(reg, m.NATMappings)
		m.Ticks = register(reg, m.Ticks)
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	are := prometheus.AlreadyRegisteredError{}
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

func (m *Metrics) drop(device, reason string) {
	m.Dropped.WithLabelValues(device, reason).Inc()
}

func (m *Metrics) routed(device, path string) {
	m.Routed.WithLabelValues(device, path).Inc()
}
