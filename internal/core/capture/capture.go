// Package capture 把仿真网络中路由的数据包写成 pcap 文件
//
// 每个包被封装为 IPv4/IPv6 + UDP 帧（LinkTypeRaw），可以直接用 Wireshark 打开。
// 序列化或写入失败只计数，不影响路由。
package capture

import (
	"bufio"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netsim/internal/core/netsim"
	"github.com/dep2p/go-netsim/pkg/lib/log"
	"github.com/dep2p/go-netsim/pkg/types"
)

var logger = log.Logger("core/capture")

// SnapLen pcap 头中声明的最大抓取长度
const SnapLen = 65535

// defaultTTL 合成 IP 头使用的 TTL
const defaultTTL = 64

// Writer pcap 写入器，实现 netsim.Tap
type Writer struct {
	mu     sync.Mutex
	pcap   *pcapgo.Writer
	buf    *bufio.Writer // 仅 Create 创建时非 nil
	closer io.Closer
	closed bool

	written atomic.Uint64
	errors  atomic.Uint64
}

var _ netsim.Tap = (*Writer)(nil)

// NewWriter 在 w 上写入 pcap 文件头
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(SnapLen, layers.LinkTypeRaw); err != nil {
		return nil, err
	}
	return &Writer{pcap: pw}, nil
}

// Create 创建（或截断）path 并返回写入器
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriter(f)
	w, err := NewWriter(bw)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	w.buf = bw
	w.closer = f
	logger.Info("开始抓包", "path", path)
	return w, nil
}

// Observe 写入一个包
func (w *Writer) Observe(p *netsim.Packet) {
	frame, err := Encode(p)
	if err != nil {
		w.errors.Add(1)
		logger.Debug("序列化数据包失败", "from", p.Source(), "to", p.Target(), "err", err)
		return
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, int64(p.Timestamp())),
		CaptureLength: len(frame),
		Length:        len(frame),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.errors.Add(1)
		return
	}
	if err := w.pcap.WritePacket(ci, frame); err != nil {
		w.errors.Add(1)
		logger.Warn("写入 pcap 失败", "err", err)
		return
	}
	w.written.Add(1)
}

// Close 刷新缓冲并关闭底层文件，可重复调用
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.buf != nil {
		err = multierr.Append(err, w.buf.Flush())
	}
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	return err
}

// Written 成功写入的包数
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// Errors 写入失败的包数
func (w *Writer) Errors() uint64 {
	return w.errors.Load()
}

// Encode 把仿真数据包序列化为 IP + UDP 帧
func Encode(p *netsim.Packet) ([]byte, error) {
	src, dst := p.Source(), p.Target()

	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port()),
		DstPort: layers.UDPPort(dst.Port()),
	}

	var network gopacket.SerializableLayer
	switch types.FamilyOf(src) {
	case types.FamilyV4:
		ip := &layers.IPv4{
			Version:  4,
			TTL:      defaultTTL,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    src.Addr().Unmap().AsSlice(),
			DstIP:    dst.Addr().Unmap().AsSlice(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	default:
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   defaultTTL,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      src.Addr().AsSlice(),
			DstIP:      dst.Addr().AsSlice(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, network, udp, gopacket.Payload(p.Data())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
