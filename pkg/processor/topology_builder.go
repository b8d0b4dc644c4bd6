package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/topology"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// TopologyBuilder 将解码后的路由通告并入拓扑图,
// 同时按链路聚合延迟/吞吐量指标
type TopologyBuilder struct {
	topology *topology.Topology
	traffic  *metrics.TrafficMetrics
}

func NewTopologyBuilder(topo *topology.Topology, traffic *metrics.TrafficMetrics) *TopologyBuilder {
	return &TopologyBuilder{
		topology: topo,
		traffic:  traffic,
	}
}

func (p *TopologyBuilder) Stage() types.Stage {
	return types.StageTopologyConstruction
}

func (p *TopologyBuilder) Name() string {
	return "TopologyBuilder"
}

func (p *TopologyBuilder) CheckReady() error {
	if p.topology == nil {
		return fmt.Errorf("topology is not set")
	}
	if p.traffic == nil {
		return fmt.Errorf("traffic metrics is not set")
	}
	return nil
}

// 拓扑图需要按到达顺序更新,单个goroutine处理
func (p *TopologyBuilder) Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error) {
	out := make(chan *types.Packet, 1000)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				logrus.Debug("Topology builder stopping due to context cancellation")
				return
			case packet, ok := <-in:
				if !ok {
					logrus.Debug("Topology builder: input channel closed")
					return
				}
				if packet == nil {
					continue
				}

				p.ingest(packet)

				select {
				case out <- packet:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// ingest 将单个数据包并入拓扑和流量指标
func (p *TopologyBuilder) ingest(packet *types.Packet) {
	p.traffic.RecordPacket(packet)

	switch result := packet.ParserResult.(type) {
	case *protocol.BGPUpdate:
		p.topology.ApplyBGPUpdate(packet.SrcIP, result)
	case *protocol.OSPFPacket:
		for i := range result.LSAs {
			p.topology.ApplyOSPFLSA(&result.LSAs[i])
		}
	}
}
