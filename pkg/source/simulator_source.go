package source

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/haolipeng/route_traffic_analyzer/pkg/metrics"
	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// OSPF组播地址,LSU报文的固定目的地址
const ospfAllSPFRouters = "224.0.0.5"

// SimulatorSource 生成合成的BGP/OSPF路由协议流量
// 奇偶交替产生两种协议,延迟/吞吐量/度量值由带种子的随机数抖动,
// 相同种子产生字节级一致的流
type SimulatorSource struct {
	output    chan *types.Packet
	count     int
	rng       *rand.Rand
	routers   []string
	peers     []string
	prefixes  []string
	neighbors []string
	stats     *metrics.SourceMetrics
	done      chan struct{}
}

func NewSimulatorSource(cfg *config.Config) (*SimulatorSource, error) {
	sim := cfg.Simulator
	if sim.Count <= 0 {
		return nil, fmt.Errorf("simulator count must be positive")
	}

	seed := sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &SimulatorSource{
		output:    make(chan *types.Packet, cfg.Pipeline.BufferSize),
		count:     sim.Count,
		rng:       rand.New(rand.NewSource(seed)),
		routers:   sim.Routers,
		peers:     sim.Peers,
		prefixes:  sim.Prefixes,
		neighbors: sim.Neighbors,
		stats:     &metrics.SourceMetrics{},
	}, nil
}

func (s *SimulatorSource) Start(ctx context.Context, wg *sync.WaitGroup) error {
	s.done = make(chan struct{})
	logrus.Infof("Simulator source started, generating %d packets", s.count)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.done)
		defer close(s.output)

		for i := 0; i < s.count; i++ {
			select {
			case <-ctx.Done():
				logrus.Info("Simulator source stopped due to context cancellation")
				return
			default:
			}

			packet, err := s.generate(i)
			if err != nil {
				s.stats.IncrementErrorCount()
				logrus.Errorf("Failed to generate packet %d: %v", i, err)
				continue
			}

			select {
			case s.output <- packet:
				s.stats.IncrementPacketsGenerated()
				s.stats.AddBytesProduced(uint64(len(packet.RawData)))
			case <-ctx.Done():
				logrus.Info("Simulator source stopped while sending packet")
				return
			}
		}
		logrus.Infof("Simulator source finished, %d packets generated", s.count)
	}()

	return nil
}

// generate 生成第i个数据包,时间戳按0.25秒递增
func (s *SimulatorSource) generate(i int) (*types.Packet, error) {
	timestamp := float64(i) * 0.25
	latency := 10.0 + float64(s.rng.Intn(120))
	throughput := 80.0 + float64(s.rng.Intn(120))

	buf := make([]byte, protocol.MinBufferSize)

	if i%2 == 0 {
		router := s.routers[i%len(s.routers)]
		peer := s.peers[i%len(s.peers)]
		prefix := s.prefixes[i%len(s.prefixes)]

		n, err := protocol.EncodeBGPUpdate(buf, prefix, router)
		if err != nil {
			return nil, err
		}
		return &types.Packet{
			ID:                fmt.Sprintf("sim-%d", i),
			Timestamp:         timestamp,
			SrcIP:             peer,
			DstIP:             router,
			TransportProtocol: "TCP",
			PayloadProtocol:   "BGP",
			Length:            n,
			RawData:           buf[:n],
			LatencyMs:         latency,
			ThroughputMbps:    throughput,
			Features:          make(map[string]interface{}),
		}, nil
	}

	router := s.routers[i%len(s.routers)]
	neighbor := s.neighbors[i%len(s.neighbors)]
	metric := uint16(5 + s.rng.Intn(20))

	n, err := protocol.EncodeOSPFRouterLSA(buf, router, neighbor, metric)
	if err != nil {
		return nil, err
	}
	return &types.Packet{
		ID:                fmt.Sprintf("sim-%d", i),
		Timestamp:         timestamp,
		SrcIP:             router,
		DstIP:             ospfAllSPFRouters,
		TransportProtocol: "IP",
		PayloadProtocol:   "OSPF",
		Length:            n,
		RawData:           buf[:n],
		LatencyMs:         latency,
		ThroughputMbps:    throughput,
		Features:          make(map[string]interface{}),
	}, nil
}

func (s *SimulatorSource) Output() <-chan *types.Packet {
	return s.output
}

// GetStats 返回源指标
func (s *SimulatorSource) GetStats() *metrics.SourceMetrics {
	return s.stats
}

// WaitForCompletion 返回生成结束信号channel
func (s *SimulatorSource) WaitForCompletion() <-chan struct{} {
	return s.done
}
