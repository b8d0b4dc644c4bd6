package metrics

import (
	"sync"

	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// Link 表示一条有向链路(源地址,目的地址)
type Link struct {
	Src string
	Dst string
}

// Bottleneck 表示一条超出阈值的链路
type Bottleneck struct {
	Link           Link     `json:"link"`
	LatencyMs      *float64 `json:"latency_ms"`
	ThroughputMbps *float64 `json:"throughput_mbps"`
}

// TrafficMetrics 按链路聚合延迟和吞吐量样本
type TrafficMetrics struct {
	mu                sync.RWMutex
	latencySamples    map[Link][]float64
	throughputSamples map[Link][]float64

	// 瓶颈判定阈值
	LatencyThresholdMs      float64
	ThroughputThresholdMbps float64
}

func NewTrafficMetrics(latencyThresholdMs, throughputThresholdMbps float64) *TrafficMetrics {
	return &TrafficMetrics{
		latencySamples:          make(map[Link][]float64),
		throughputSamples:       make(map[Link][]float64),
		LatencyThresholdMs:      latencyThresholdMs,
		ThroughputThresholdMbps: throughputThresholdMbps,
	}
}

// RecordPacket 记录一个数据包的延迟和吞吐量样本
func (m *TrafficMetrics) RecordPacket(packet *types.Packet) {
	if packet == nil {
		return
	}
	link := Link{Src: packet.SrcIP, Dst: packet.DstIP}

	m.mu.Lock()
	defer m.mu.Unlock()
	if packet.LatencyMs > 0 {
		m.latencySamples[link] = append(m.latencySamples[link], packet.LatencyMs)
	}
	if packet.ThroughputMbps > 0 {
		m.throughputSamples[link] = append(m.throughputSamples[link], packet.ThroughputMbps)
	}
}

// AverageLatency 返回每条链路的平均延迟(ms)
func (m *TrafficMetrics) AverageLatency() map[Link]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return averages(m.latencySamples)
}

// AverageThroughput 返回每条链路的平均吞吐量(Mbps)
func (m *TrafficMetrics) AverageThroughput() map[Link]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return averages(m.throughputSamples)
}

// DetectBottlenecks 找出延迟超标或吞吐量不足的链路
func (m *TrafficMetrics) DetectBottlenecks() []Bottleneck {
	avgLatency := m.AverageLatency()
	avgThroughput := m.AverageThroughput()

	seen := make(map[Link]struct{})
	for link := range avgLatency {
		seen[link] = struct{}{}
	}
	for link := range avgThroughput {
		seen[link] = struct{}{}
	}

	var bottlenecks []Bottleneck
	for link := range seen {
		var latency, throughput *float64
		if v, ok := avgLatency[link]; ok {
			latency = &v
		}
		if v, ok := avgThroughput[link]; ok {
			throughput = &v
		}
		if (latency != nil && *latency > m.LatencyThresholdMs) ||
			(throughput != nil && *throughput < m.ThroughputThresholdMbps) {
			bottlenecks = append(bottlenecks, Bottleneck{
				Link:           link,
				LatencyMs:      latency,
				ThroughputMbps: throughput,
			})
		}
	}
	return bottlenecks
}

func averages(samples map[Link][]float64) map[Link]float64 {
	result := make(map[Link]float64, len(samples))
	for link, values := range samples {
		if len(values) == 0 {
			continue
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		result[link] = sum / float64(len(values))
	}
	return result
}
