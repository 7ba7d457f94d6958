package netsim

import (
	netsimif "github.com/dep2p/go-netsim/pkg/interfaces/netsim"
)

// MapOfInternet 返回网络中所有节点的 downlink 名称 → 链路映射
//
// 同名链路以先出现者为准。Internet 的 LocalNodes 与 PublicNodes 相同，
// 因此每个节点只出现一次。
func MapOfInternet(network netsimif.Network) map[string]netsimif.Link {
	links := make(map[string]netsimif.Link)
	add := func(nodes []netsimif.Node) {
		for _, node := range nodes {
			l := node.Downlink()
			if l == nil {
				continue
			}
			if _, exists := links[l.Name()]; !exists {
				links[l.Name()] = l
			}
		}
	}
	add(network.LocalNodes())
	add(network.PublicNodes())
	return links
}

// LinkStats 汇总网络中所有链路的统计快照
func LinkStats(network netsimif.Network) []netsimif.LinkStats {
	links := MapOfInternet(network)
	stats := make([]netsimif.LinkStats, 0, len(links))
	for _, l := range links {
		stats = append(stats, l.Stats())
	}
	return stats
}
