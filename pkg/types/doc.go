// Package types 定义仿真网络的公共值类型与地址辅助函数
//
// 这是最底层的包，不依赖任何其他内部包。
//
// # 文件组织
//
//   - family.go - 地址族（v4/v6）判断、IP 比较、IPv4-mapped 归一化
//
// 地址统一使用 netip.AddrPort。IPv4-mapped IPv6 地址在构造节点时被归一化为
// IPv4，因此同一端点只有一种表示。
package types
