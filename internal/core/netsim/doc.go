// Package netsim 实现确定性的进程内虚拟网络拓扑
//
// # 模块概述
//
// 用于在没有真实 socket 和真实 NAT 设备的情况下，
// 对媒体中继传输栈做可重复的集成测试：
//   - Gateway: 有界并发入队队列（多生产者、单消费者）
//   - Internet: 节点注册表 + 按目标地址扇出
//   - Firewall: 有状态 NAT，LAN/DMZ 两张注册表
//   - Runner: 后台 goroutine 按固定间隔驱动 Internet.Process
//   - Endpoint: 测试用普通端点
//
// # 快速开始
//
//	runner, err := netsim.NewRunner(nil)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	internet := runner.Network()
//	fw, _ := netsim.NewFirewall(nil, netip.MustParseAddrPort("203.0.113.1:0"), internet)
//
//	alice, _ := netsim.NewEndpoint(netip.MustParseAddrPort("10.0.0.2:5000"), fw)
//	fw.AddLocal(alice)
//
//	server, _ := netsim.NewEndpoint(netip.MustParseAddrPort("198.51.100.7:3478"), internet)
//	internet.AddPublic(server)
//
//	runner.Start()
//	alice.Send(server.Addr(), []byte("ping"), 0)
//
// # 一个 tick 内的顺序
//
// Internet.Process 先推进所有节点，再路由 tick 开始时已排队的包，
// 最后再推进一次所有节点。第二次推进使刚投递给嵌套防火墙的包
// 在同一 tick 内完成下一跳路由，而不需要无界的递归清空。
// tick 进行中并发入队的包可能在本 tick 或下一 tick 被处理。
//
// # NAT 行为
//
// 只实现一种固定策略：
//   - 出站首包惰性创建映射，公网端口顺序分配、永不回收
//   - 同一私网地址的所有出站包使用同一公网映射
//   - 没有映射的入站包一律丢弃
//   - LAN 内互发不经过 NAT
//   - 目标落在 ExcludedRanges 中的包直接丢弃
//
// 映射不会过期，长时间运行的仿真中映射表会持续增长。
//
// # 并发
//
// 注册表由每个设备的互斥锁保护，锁只在扫描/修改列表时持有，
// 从不跨越对其他节点的调用。映射表只由所属防火墙的 Process 写入。
package netsim

import (
	"github.com/dep2p/go-netsim/pkg/lib/log"
)

var logger = log.Logger("core/netsim")
