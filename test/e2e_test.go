package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/haolipeng/route_traffic_analyzer/pkg/dashboard"
	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/pipeline"
	"github.com/haolipeng/route_traffic_analyzer/pkg/processor"
	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/ruleEngine"
	"github.com/haolipeng/route_traffic_analyzer/pkg/source"
	"github.com/haolipeng/route_traffic_analyzer/pkg/topology"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

func e2eConfig(count int) *config.Config {
	cfg := &config.Config{}
	cfg.Source.Type = "simulator"
	cfg.Simulator.Count = count
	cfg.Simulator.Seed = 42
	cfg.Simulator.Routers = []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	cfg.Simulator.Peers = []string{"192.168.1.1", "192.168.1.2"}
	cfg.Simulator.Prefixes = []string{"10.10.0.0/16", "10.20.0.0/16", "172.16.0.0/12"}
	cfg.Simulator.Neighbors = []string{"10.0.0.2", "10.0.0.3"}
	cfg.Pipeline.WorkerCount = 2
	cfg.Pipeline.BufferSize = 100
	cfg.Output.Type = "json"
	return cfg
}

// 端到端测试:模拟器生成报文,经过完整流水线后验证分析结果
func TestPipelineEndToEnd(t *testing.T) {
	const packetCount = 40
	cfg := e2eConfig(packetCount)

	// 创建流水线
	p := pipeline.NewPipeline()
	require.NoError(t, p.SetConfig(cfg))

	// 创建数据源
	simSource, err := source.NewSimulatorSource(cfg)
	require.NoError(t, err)
	p.SetSource(simSource)

	// 添加协议解析处理器
	require.NoError(t, p.AddProcessor(processor.NewProtocolParser(cfg.Pipeline.WorkerCount)))

	// 添加特征提取处理器
	require.NoError(t, p.AddProcessor(processor.NewBasicFeatureExtractor(cfg.Pipeline.WorkerCount)))

	// 添加规则引擎处理器
	engine, err := processor.NewRuleEngine(map[string]*ruleEngine.Rule{
		"bgp_black": {
			State:        "enable",
			RuleID:       "bgp_black",
			RuleProtocol: "bgp",
			RuleMode:     "blacklist",
			ProtocolRules: map[string]*ruleEngine.ProtocolRule{
				processor.RuleTagBGPUpdate: {
					State:      "enable",
					Expression: "bgp.med > 100",
				},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, p.AddProcessor(engine))

	// 添加拓扑构建处理器
	topo := topology.New()
	traffic := metrics.NewTrafficMetrics(80, 100)
	require.NoError(t, p.AddProcessor(processor.NewTopologyBuilder(topo, traffic)))

	// 创建内存输出
	memorySink, err := NewMemorySink()
	require.NoError(t, err)
	p.SetSink(memorySink)

	// 启动流水线并等待有限数据源处理完成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	p.Wait()
	require.NoError(t, p.Stop())

	// 验证结果
	results := memorySink.GetResults()
	require.Len(t, results, packetCount, "所有报文都应到达sink")

	var bgpCount, ospfCount int
	for _, packet := range results {
		require.NotNil(t, packet.ParserResult, "报文 %s 应被成功解码", packet.ID)
		require.NotNil(t, packet.RuleResult, "报文 %s 应带有规则匹配结果", packet.ID)
		assert.Contains(t, packet.Features, "packet_size")
		assert.Contains(t, packet.Features, "link")

		switch packet.ParserResult.GetType() {
		case types.BGP:
			bgpCount++
			update := packet.ParserResult.(*protocol.BGPUpdate)
			assert.Equal(t, []uint16{65001, 65002}, update.ASPath)
			// 模拟器的MED固定为25,黑名单不应命中
			assert.Equal(t, types.ActionForward, packet.RuleResult.Action)
		case types.OSPF:
			ospfCount++
		}
	}
	assert.Equal(t, packetCount/2, bgpCount, "一半报文应为BGP")
	assert.Equal(t, packetCount/2, ospfCount, "一半报文应为OSPF")

	// 拓扑应由通告报文填充
	assert.NotEmpty(t, topo.Nodes())
	assert.NotEmpty(t, topo.Links())
	assert.NotEmpty(t, topo.PrefixOrigins())

	// 看板应能生成完整输出
	board := dashboard.New(traffic, topo)
	md := board.ToMarkdown()
	assert.Contains(t, md, "# Network Traffic Dashboard")

	assert.Equal(t, "stopped", p.Status())
}
