// Package netsim 提供确定性的进程内虚拟网络，用于测试 UDP 媒体传输栈
//
// 仿真网络由 Internet、Firewall（有状态 NAT）与端点组成，
// 由一个后台 Runner 按固定间隔推进，全程不使用真实 socket。
//
// # 快速开始
//
//	sim, err := netsim.Start(ctx,
//	    netsim.WithTickInterval(5*time.Millisecond),
//	    netsim.WithCapture("out.pcap"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer sim.Close()
//
//	internet := sim.Network()
//	fw, _ := netsim.NewFirewall(sim.Config(), netip.MustParseAddrPort("203.0.113.1:0"), internet)
//
//	alice, _ := netsim.NewEndpoint(netip.MustParseAddrPort("10.0.0.2:5000"), fw)
//	fw.AddLocal(alice)
//
//	bob, _ := netsim.NewEndpoint(netip.MustParseAddrPort("198.51.100.7:4000"), internet)
//	internet.AddPublic(bob)
//
//	alice.Send(bob.Addr(), []byte("hello"), 0)
//	pkt, _ := bob.Receive(ctx) // pkt.Source() 是 alice 的 NAT 映射
//
// # 组件
//
//   - Simulator: fx 装配的门面，持有 Runner、Internet、指标与可选的抓包
//   - Internet / Firewall / Endpoint: 拓扑节点，见 internal/core/netsim
//   - STUNServer: 回填公网映射的 STUN 节点
//
// # NAT 行为
//
// 只有一种：端口顺序分配、与目标无关的映射、入站默认拒绝、映射永不过期。
package netsim
