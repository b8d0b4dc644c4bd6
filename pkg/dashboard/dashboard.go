package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/topology"
)

// Dashboard 汇总分析结果,供CLI输出和HTTP API使用
type Dashboard struct {
	Metrics  *metrics.TrafficMetrics
	Topology *topology.Topology
}

func New(m *metrics.TrafficMetrics, t *topology.Topology) *Dashboard {
	return &Dashboard{Metrics: m, Topology: t}
}

// LinkSummary 链路的展示信息
type LinkSummary struct {
	Metric    float64  `json:"metric"`
	Protocols []string `json:"protocols"`
}

// BottleneckSummary 瓶颈链路的展示信息
type BottleneckSummary struct {
	Link           string   `json:"link"`
	LatencyMs      *float64 `json:"latency_ms"`
	ThroughputMbps *float64 `json:"throughput_mbps"`
}

// Summary 生成完整的汇总数据
func (d *Dashboard) Summary() map[string]interface{} {
	links := make(map[string]LinkSummary)
	for link, meta := range d.Topology.Links() {
		protocols := make([]string, 0, len(meta.Protocols))
		for p := range meta.Protocols {
			protocols = append(protocols, p)
		}
		sort.Strings(protocols)
		links[linkKey(link.Src, link.Dst)] = LinkSummary{
			Metric:    meta.Metric,
			Protocols: protocols,
		}
	}

	avgLatency := make(map[string]float64)
	for link, value := range d.Metrics.AverageLatency() {
		avgLatency[linkKey(link.Src, link.Dst)] = value
	}
	avgThroughput := make(map[string]float64)
	for link, value := range d.Metrics.AverageThroughput() {
		avgThroughput[linkKey(link.Src, link.Dst)] = value
	}

	bottlenecks := make([]BottleneckSummary, 0)
	for _, entry := range d.Metrics.DetectBottlenecks() {
		bottlenecks = append(bottlenecks, BottleneckSummary{
			Link:           linkKey(entry.Link.Src, entry.Link.Dst),
			LatencyMs:      entry.LatencyMs,
			ThroughputMbps: entry.ThroughputMbps,
		})
	}
	sort.Slice(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].Link < bottlenecks[j].Link
	})

	return map[string]interface{}{
		"nodes":                   d.Topology.Nodes(),
		"links":                   links,
		"prefix_origins":          d.Topology.PrefixOrigins(),
		"average_latency_ms":      avgLatency,
		"average_throughput_mbps": avgThroughput,
		"bottlenecks":             bottlenecks,
	}
}

// ToMarkdown 将汇总数据渲染为markdown文本
func (d *Dashboard) ToMarkdown() string {
	summary := d.Summary()
	var lines []string

	lines = append(lines, "# Network Traffic Dashboard", "", "## Nodes")
	nodes := summary["nodes"].([]string)
	if len(nodes) == 0 {
		lines = append(lines, "None")
	} else {
		lines = append(lines, strings.Join(nodes, ", "))
	}

	lines = append(lines, "", "## Links")
	links := summary["links"].(map[string]LinkSummary)
	for _, key := range sortedKeys(links) {
		entry := links[key]
		lines = append(lines, fmt.Sprintf("- **%s**: metric=%g, protocols=%s",
			key, entry.Metric, strings.Join(entry.Protocols, ", ")))
	}

	lines = append(lines, "", "## Average Latency (ms)")
	avgLatency := summary["average_latency_ms"].(map[string]float64)
	for _, key := range sortedKeys(avgLatency) {
		lines = append(lines, fmt.Sprintf("- %s: %.2f", key, avgLatency[key]))
	}

	lines = append(lines, "", "## Average Throughput (Mbps)")
	avgThroughput := summary["average_throughput_mbps"].(map[string]float64)
	for _, key := range sortedKeys(avgThroughput) {
		lines = append(lines, fmt.Sprintf("- %s: %.2f", key, avgThroughput[key]))
	}

	lines = append(lines, "", "## Potential Bottlenecks")
	bottlenecks := summary["bottlenecks"].([]BottleneckSummary)
	if len(bottlenecks) == 0 {
		lines = append(lines, "- None detected")
	} else {
		for _, entry := range bottlenecks {
			lines = append(lines, fmt.Sprintf("- %s: latency=%s ms, throughput=%s Mbps",
				entry.Link, formatSample(entry.LatencyMs), formatSample(entry.ThroughputMbps)))
		}
	}

	return strings.Join(lines, "\n")
}

func linkKey(src, dst string) string {
	return src + "->" + dst
}

func formatSample(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
