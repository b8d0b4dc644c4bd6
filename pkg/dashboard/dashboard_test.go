package dashboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/topology"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

func buildDashboard() *Dashboard {
	topo := topology.New()
	topo.AddLink("10.0.0.1", "10.0.0.2", 12, "OSPF")
	topo.AddLink("192.168.1.1", "10.0.0.1", 1, "BGP")

	traffic := metrics.NewTrafficMetrics(80, 100)
	traffic.RecordPacket(&types.Packet{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		LatencyMs: 120, ThroughputMbps: 60,
	})
	traffic.RecordPacket(&types.Packet{
		SrcIP: "192.168.1.1", DstIP: "10.0.0.1",
		LatencyMs: 20, ThroughputMbps: 150,
	})

	return New(traffic, topo)
}

// TestDashboardSummary 汇总数据应包含所有板块
func TestDashboardSummary(t *testing.T) {
	board := buildDashboard()
	summary := board.Summary()

	nodes, ok := summary["nodes"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "192.168.1.1"}, nodes)

	links, ok := summary["links"].(map[string]LinkSummary)
	require.True(t, ok)
	entry, ok := links["10.0.0.1->10.0.0.2"]
	require.True(t, ok)
	assert.Equal(t, 12.0, entry.Metric)
	assert.Equal(t, []string{"OSPF"}, entry.Protocols)

	avgLatency, ok := summary["average_latency_ms"].(map[string]float64)
	require.True(t, ok)
	assert.Equal(t, 120.0, avgLatency["10.0.0.1->10.0.0.2"])

	// 只有一条链路同时超出延迟阈值且吞吐量不足
	bottlenecks, ok := summary["bottlenecks"].([]BottleneckSummary)
	require.True(t, ok)
	require.Len(t, bottlenecks, 1)
	assert.Equal(t, "10.0.0.1->10.0.0.2", bottlenecks[0].Link)
}

// TestDashboardMarkdown markdown输出应包含全部章节标题
func TestDashboardMarkdown(t *testing.T) {
	board := buildDashboard()
	md := board.ToMarkdown()

	for _, heading := range []string{
		"# Network Traffic Dashboard",
		"## Nodes",
		"## Links",
		"## Average Latency (ms)",
		"## Average Throughput (Mbps)",
		"## Potential Bottlenecks",
	} {
		assert.True(t, strings.Contains(md, heading), "缺少章节 %s", heading)
	}

	assert.Contains(t, md, "10.0.0.1->10.0.0.2")
	assert.Contains(t, md, "metric=12")
}

// TestDashboardMarkdownEmpty 空拓扑也应产生合法的看板文本
func TestDashboardMarkdownEmpty(t *testing.T) {
	board := New(metrics.NewTrafficMetrics(80, 100), topology.New())
	md := board.ToMarkdown()

	assert.Contains(t, md, "None")
	assert.Contains(t, md, "- None detected")
}
