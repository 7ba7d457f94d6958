// Package main 提供 netsim 命令行入口
//
// 按 JSON 拓扑搭建仿真网络，从每个 LAN 端点做一次 STUN 探测，
// 运行指定时长后打印 NAT 映射与链路统计。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dep2p/go-netsim"
	"github.com/dep2p/go-netsim/config"
	simcore "github.com/dep2p/go-netsim/internal/core/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
)

var logger = log.Logger("netsim/cmd")

var (
	configFile  = flag.String("config", "", "拓扑配置文件路径（JSON）")
	duration    = flag.Duration("duration", 0, "运行时长，覆盖配置中的 run_for")
	pcapFile    = flag.String("pcap", "", "抓包输出路径")
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(netsim.VersionInfo())
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	cfg := config.NewConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return err
		}
	}
	runFor := cfg.Simulation.RunFor.Duration()
	if *duration > 0 {
		runFor = *duration
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return simulate(ctx, cfg, runFor, *pcapFile, os.Stdout)
}

// simulate 搭建、运行并报告一次仿真
func simulate(ctx context.Context, cfg *config.Config, runFor time.Duration, pcap string, out io.Writer) (err error) {
	simCfg, err := cfg.ToSimConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	opts := []netsim.Option{netsim.WithConfig(simCfg)}
	if pcap != "" {
		opts = append(opts, netsim.WithCapture(pcap))
	}
	sim, err := netsim.New(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sim.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	topo, err := buildTopology(sim, cfg)
	if err != nil {
		return err
	}
	logger.Info("拓扑已搭建",
		"firewalls", len(topo.firewalls),
		"endpoints", cfg.EndpointCount(),
		"stun", topo.stun != nil)

	if err := sim.Start(ctx); err != nil {
		return err
	}

	results := topo.probe(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(runFor):
	}
	sim.Pause()

	report(out, sim, topo, results)
	return nil
}

// report 打印探测结果、映射表与链路统计
func report(out io.Writer, sim *netsim.Simulator, topo *topology, results []probeResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(results) > 0 {
		fmt.Fprintln(tw, "STUN 探测\t\t\t\t")
		fmt.Fprintln(tw, "端点\t私网地址\t反射地址\t映射一致\t")
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(tw, "%s\t%s\t错误: %v\t-\t\n", r.Name, r.Private, r.Err)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t\n", r.Name, r.Private, r.Reflexive, r.Consistent())
		}
		fmt.Fprintln(tw, "\t\t\t\t")
	}

	for _, fw := range topo.firewalls {
		fmt.Fprintf(tw, "%s\t映射数: %d\t\t\t\n", fw.Name(), fw.MappingCount())
		for _, m := range fw.Mappings() {
			fmt.Fprintf(tw, "\t%s\t->\t%s\t\n", m.Private, m.Public)
		}
	}
	fmt.Fprintln(tw, "\t\t\t\t")

	stats := simcore.LinkStats(topo.internet)
	for _, fw := range topo.firewalls {
		stats = append(stats, simcore.LinkStats(fw)...)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	fmt.Fprintln(tw, "链路\t包数\t字节\t丢弃\t")
	seen := make(map[string]bool, len(stats))
	for _, s := range stats {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", s.Name, s.Packets, s.Bytes, s.Dropped)
	}
	fmt.Fprintf(tw, "ticks\t%d\t\t\t\n", sim.Ticks())
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("netsim - 虚拟网络拓扑仿真")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  netsim -config topology.json [-duration 2s] [-pcap out.pcap]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  NETSIM_LOG_LEVEL   日志级别，例如 core/netsim=debug,info")
	fmt.Println("  NETSIM_LOG_FORMAT  text 或 json")
}
