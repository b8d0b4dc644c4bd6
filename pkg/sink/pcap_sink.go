package sink

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/haolipeng/gopacket"
	"github.com/haolipeng/gopacket/layers"
	"github.com/haolipeng/gopacket/pcapgo"
	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

const (
	bgpPort        = 179
	ipProtocolOSPF = layers.IPProtocol(89)
)

// 合成帧使用的固定MAC地址
var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// PcapSink 把合成载荷封装成以太网帧并写入按大小滚动的pcap文件
type PcapSink struct {
	baseFilename string // 基础文件名
	maxFileSize  int64  // 单文件大小上限
	currentSize  int64
	fileIndex    int
	pcapWriter   *pcapgo.Writer
	curFileName  string
	file         *os.File
	mu           sync.Mutex
	ready        chan struct{}
	stats        *metrics.SinkMetrics
}

func NewPcapSink(cfg *config.Config) (*PcapSink, error) {
	if cfg.Output.BaseFilename == "" {
		return nil, fmt.Errorf("pcap sink requires output base_filename")
	}

	sink := &PcapSink{
		baseFilename: cfg.Output.BaseFilename,
		maxFileSize:  cfg.Output.MaxFileSize,
		fileIndex:    1,
		ready:        make(chan struct{}),
		stats:        &metrics.SinkMetrics{},
	}

	if err := sink.createNewPcapFile(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *PcapSink) createNewPcapFile() error {
	// 文件名形如 routesim_20240318_153000_1.pcap
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%d.pcap", s.baseFilename, timestamp, s.fileIndex)

	f, err := os.Create(filename)
	if err != nil {
		logrus.Errorf("Failed to create pcap file: %v", err)
		return err
	}

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			logrus.Errorf("Failed to close previous pcap file: %v", err)
		}
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		logrus.Errorf("Failed to write pcap header: %v", err)
		return err
	}

	s.curFileName = filename
	s.file = f
	s.pcapWriter = w
	s.currentSize = 0
	s.fileIndex++

	logrus.Infof("Created new pcap file: %s", filename)
	return nil
}

func (s *PcapSink) Consume(ctx context.Context, in <-chan *types.Packet) error {
	logrus.Info("Starting pcap sink consumer")
	defer func() {
		s.mu.Lock()
		if s.file != nil {
			if err := s.file.Close(); err != nil {
				logrus.Errorf("Failed to close pcap file: %v", err)
			}
		}
		s.mu.Unlock()
		logrus.Info("Pcap sink consumer stopped")
	}()

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Pcap sink received context cancellation")
			return nil
		case packet, ok := <-in:
			if !ok {
				logrus.Debug("Pcap sink input channel closed")
				return nil
			}

			if err := s.writePacketToPcap(packet); err != nil {
				s.stats.IncrementWriteErrors()
				logrus.Errorf("Failed to write packet: %v", err)
				continue
			}
		}
	}
}

func (s *PcapSink) writePacketToPcap(packet *types.Packet) error {
	if packet.RawData == nil {
		logrus.Error("No raw packet data available")
		return nil
	}

	frame, err := buildFrame(packet)
	if err != nil {
		return fmt.Errorf("build frame for packet %s: %w", packet.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentSize >= s.maxFileSize {
		if err := s.createNewPcapFile(); err != nil {
			return err
		}
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, int64(packet.Timestamp*float64(time.Second))),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := s.pcapWriter.WritePacket(ci, frame); err != nil {
		logrus.Errorf("Failed to write packet to pcap: %v", err)
		return err
	}

	s.currentSize += int64(len(frame))
	s.stats.IncrementPacketsWritten()
	s.stats.AddBytesWritten(uint64(len(frame)))

	if packet.RuleResult != nil && packet.RuleResult.Action == types.ActionAlert {
		logAlert(packet)
	}
	return nil
}

// buildFrame 按载荷协议封装以太网帧:
// BGP走TCP 179端口,OSPF直接承载在IP协议89上
func buildFrame(packet *types.Packet) ([]byte, error) {
	srcIP := net.ParseIP(packet.SrcIP)
	dstIP := net.ParseIP(packet.DstIP)
	if srcIP == nil || dstIP == nil {
		return nil, fmt.Errorf("invalid address pair %q -> %q", packet.SrcIP, packet.DstIP)
	}

	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version: 4,
		TTL:     64,
		SrcIP:   srcIP,
		DstIP:   dstIP,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	switch packet.PayloadProtocol {
	case "BGP":
		ip.Protocol = layers.IPProtocolTCP
		tcp := layers.TCP{
			SrcPort: layers.TCPPort(33000),
			DstPort: layers.TCPPort(bgpPort),
			ACK:     true,
			PSH:     true,
			Window:  65535,
		}
		if err := tcp.SetNetworkLayerForChecksum(&ip); err != nil {
			return nil, err
		}
		if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp,
			gopacket.Payload(packet.RawData)); err != nil {
			return nil, err
		}
	case "OSPF":
		ip.Protocol = ipProtocolOSPF
		if err := gopacket.SerializeLayers(buf, opts, &eth, &ip,
			gopacket.Payload(packet.RawData)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported payload protocol: %q", packet.PayloadProtocol)
	}

	return buf.Bytes(), nil
}

func (s *PcapSink) Ready() <-chan struct{} {
	return s.ready
}

// GetStats 返回sink指标
func (s *PcapSink) GetStats() *metrics.SinkMetrics {
	return s.stats
}
