package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// JSONFileSource 从NDJSON捕获文件逐行读取数据包记录
type JSONFileSource struct {
	file     *os.File
	output   chan *types.Packet
	done     chan struct{}
	stats    *metrics.SourceMetrics
	filename string
}

func NewJSONFileSource(filename string, bufferSize int) (*JSONFileSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", filename, err)
	}

	return &JSONFileSource{
		file:     f,
		output:   make(chan *types.Packet, bufferSize),
		filename: filename,
		stats:    &metrics.SourceMetrics{},
	}, nil
}

func (s *JSONFileSource) Start(ctx context.Context, wg *sync.WaitGroup) error {
	s.done = make(chan struct{})
	logrus.Infof("Started reading packets from file: %s", s.filename)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.done)
		defer close(s.output)
		defer s.file.Close()

		scanner := bufio.NewScanner(s.file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		var lineNum int
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				logrus.Info("Stopping packet reading due to context cancellation")
				return
			default:
			}

			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var record types.CaptureRecord
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				s.stats.IncrementErrorCount()
				logrus.Warnf("Skipping malformed record at line %d: %v", lineNum, err)
				continue
			}

			packet, err := record.ToPacket(fmt.Sprintf("pkt-%d", lineNum))
			if err != nil {
				s.stats.IncrementErrorCount()
				logrus.Warnf("Skipping record at line %d: %v", lineNum, err)
				continue
			}

			select {
			case s.output <- packet:
				s.stats.IncrementPacketsGenerated()
				s.stats.AddBytesProduced(uint64(len(packet.RawData)))
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logrus.Errorf("Error reading capture file: %v", err)
		}
		logrus.Info("Reached end of capture file")
	}()

	return nil
}

func (s *JSONFileSource) Output() <-chan *types.Packet {
	return s.output
}

// GetStats 返回源指标
func (s *JSONFileSource) GetStats() *metrics.SourceMetrics {
	return s.stats
}

// WaitForCompletion 返回读取结束信号channel
func (s *JSONFileSource) WaitForCompletion() <-chan struct{} {
	return s.done
}
