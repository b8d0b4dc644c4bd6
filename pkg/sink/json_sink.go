package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// JSONLinesSink 把数据包写成NDJSON记录,
// 每行一个JSON对象,payload_hex保留编码字节的原样
type JSONLinesSink struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	ready  chan struct{}
	stats  *metrics.SinkMetrics
}

func NewJSONLinesSink(filename string) (*JSONLinesSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", filename, err)
	}

	return &JSONLinesSink{
		file:   f,
		writer: bufio.NewWriter(f),
		ready:  make(chan struct{}),
		stats:  &metrics.SinkMetrics{},
	}, nil
}

func (s *JSONLinesSink) Consume(ctx context.Context, in <-chan *types.Packet) error {
	logrus.Info("Starting JSON lines sink consumer")
	defer func() {
		s.mu.Lock()
		if err := s.writer.Flush(); err != nil {
			logrus.Errorf("Failed to flush output file: %v", err)
		}
		if err := s.file.Close(); err != nil {
			logrus.Errorf("Failed to close output file: %v", err)
		}
		s.mu.Unlock()
		logrus.Info("JSON lines sink consumer stopped")
	}()

	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("JSON sink received context cancellation")
			return nil
		case packet, ok := <-in:
			if !ok {
				logrus.Debug("JSON sink input channel closed")
				return nil
			}

			if err := s.writePacket(packet); err != nil {
				s.stats.IncrementWriteErrors()
				logrus.Errorf("Failed to write packet: %v", err)
				continue
			}
		}
	}
}

func (s *JSONLinesSink) writePacket(packet *types.Packet) error {
	if packet.RawData == nil {
		logrus.Error("No raw packet data available")
		return nil
	}

	record := types.NewCaptureRecord(packet)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}

	s.stats.IncrementPacketsWritten()
	s.stats.AddBytesWritten(uint64(len(data) + 1))

	// 告警包额外记录日志
	if packet.RuleResult != nil && packet.RuleResult.Action == types.ActionAlert {
		logAlert(packet)
	}
	return nil
}

func (s *JSONLinesSink) Ready() <-chan struct{} {
	return s.ready
}

// GetStats 返回sink指标
func (s *JSONLinesSink) GetStats() *metrics.SinkMetrics {
	return s.stats
}

// logAlert 记录黑名单命中的告警信息
func logAlert(packet *types.Packet) {
	fields := logrus.Fields{
		"packet_id":  packet.ID,
		"src_ip":     packet.SrcIP,
		"dst_ip":     packet.DstIP,
		"protocol":   packet.PayloadProtocol,
		"latency_ms": packet.LatencyMs,
	}
	if packet.RuleResult.BlackRule != nil {
		fields["description"] = packet.RuleResult.BlackRule.Description
	}
	logrus.WithFields(fields).Warn("Blacklist rule matched")
}
