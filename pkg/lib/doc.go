// Package lib 包含基础设施工具库
//
// 本目录包含与仿真组件无关的通用工具库：
//
//   - log: 基于 log/slog 的分组件日志封装
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - interfaces/: 节点与链路的公共接口
//   - types/: 公共值类型
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import "github.com/dep2p/go-netsim/pkg/lib/log"
//
//	var logger = log.Logger("core/netsim")
package lib
