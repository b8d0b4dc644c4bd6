package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

func samplePacket(src, dst string, latency, throughput float64) *types.Packet {
	return &types.Packet{
		SrcIP:          src,
		DstIP:          dst,
		LatencyMs:      latency,
		ThroughputMbps: throughput,
	}
}

// TestAverageLatencyAndThroughput 按链路聚合并计算平均值
func TestAverageLatencyAndThroughput(t *testing.T) {
	m := NewTrafficMetrics(80, 100)

	m.RecordPacket(samplePacket("10.0.0.1", "10.0.0.2", 20, 150))
	m.RecordPacket(samplePacket("10.0.0.1", "10.0.0.2", 40, 250))
	m.RecordPacket(samplePacket("10.0.0.2", "10.0.0.3", 100, 50))

	link12 := Link{Src: "10.0.0.1", Dst: "10.0.0.2"}
	link23 := Link{Src: "10.0.0.2", Dst: "10.0.0.3"}

	latency := m.AverageLatency()
	assert.Equal(t, 30.0, latency[link12])
	assert.Equal(t, 100.0, latency[link23])

	throughput := m.AverageThroughput()
	assert.Equal(t, 200.0, throughput[link12])
	assert.Equal(t, 50.0, throughput[link23])
}

// TestRecordPacketIgnoresNonPositiveSamples 零值样本不参与统计
func TestRecordPacketIgnoresNonPositiveSamples(t *testing.T) {
	m := NewTrafficMetrics(80, 100)

	m.RecordPacket(samplePacket("10.0.0.1", "10.0.0.2", 0, 0))
	m.RecordPacket(nil)

	assert.Empty(t, m.AverageLatency())
	assert.Empty(t, m.AverageThroughput())
}

// TestDetectBottlenecks 延迟超标或吞吐量不足的链路应被标记
func TestDetectBottlenecks(t *testing.T) {
	m := NewTrafficMetrics(80, 100)

	// 健康链路: 延迟低于阈值,吞吐量高于阈值
	m.RecordPacket(samplePacket("10.0.0.1", "10.0.0.2", 20, 150))
	// 高延迟链路
	m.RecordPacket(samplePacket("10.0.0.2", "10.0.0.3", 120, 150))
	// 低吞吐量链路
	m.RecordPacket(samplePacket("10.0.0.3", "10.0.0.1", 20, 60))

	bottlenecks := m.DetectBottlenecks()
	require.Len(t, bottlenecks, 2)

	byLink := make(map[Link]Bottleneck)
	for _, b := range bottlenecks {
		byLink[b.Link] = b
	}

	slow, ok := byLink[Link{Src: "10.0.0.2", Dst: "10.0.0.3"}]
	require.True(t, ok, "高延迟链路应被标记")
	require.NotNil(t, slow.LatencyMs)
	assert.Equal(t, 120.0, *slow.LatencyMs)

	thin, ok := byLink[Link{Src: "10.0.0.3", Dst: "10.0.0.1"}]
	require.True(t, ok, "低吞吐量链路应被标记")
	require.NotNil(t, thin.ThroughputMbps)
	assert.Equal(t, 60.0, *thin.ThroughputMbps)
}

// TestDetectBottlenecksBoundary 恰好等于阈值的链路不算瓶颈
func TestDetectBottlenecksBoundary(t *testing.T) {
	m := NewTrafficMetrics(80, 100)

	m.RecordPacket(samplePacket("10.0.0.1", "10.0.0.2", 80, 100))

	assert.Empty(t, m.DetectBottlenecks())
}
