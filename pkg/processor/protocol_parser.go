package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// ProtocolParser 将编码的协议载荷解码为结构化的ParserResult
type ProtocolParser struct {
	workers int
}

func NewProtocolParser(workers int) *ProtocolParser {
	return &ProtocolParser{
		workers: workers,
	}
}

func (p *ProtocolParser) Stage() types.Stage {
	return types.StageProtocolParsing
}

func (p *ProtocolParser) Name() string {
	return "ProtocolParser"
}

func (p *ProtocolParser) CheckReady() error {
	if p.workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", p.workers)
	}
	return nil
}

func (p *ProtocolParser) Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error) {
	out := make(chan *types.Packet, 1000)
	logrus.Debugf("Starting ProtocolParser with %d workers", p.workers)

	var workerWg sync.WaitGroup
	workerWg.Add(p.workers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		workerWg.Wait()
		close(out)
	}()

	for i := 0; i < p.workers; i++ {
		go func(workerID int) {
			defer workerWg.Done()
			logrus.Debugf("Protocol parser worker %d started", workerID)
			for {
				select {
				case <-ctx.Done():
					logrus.Debugf("Protocol parser worker %d stopping due to context cancellation", workerID)
					return
				case packet, ok := <-in:
					if !ok {
						logrus.Debugf("Protocol parser worker %d: input channel closed", workerID)
						return
					}
					if packet == nil {
						logrus.Warnf("Protocol parser worker %d received nil packet", workerID)
						continue
					}

					if err := p.ParsePacket(packet); err != nil {
						packet.LastError = err
						logrus.Warnf("Worker %d: failed to parse %s payload of packet %s: %v",
							workerID, packet.PayloadProtocol, packet.ID, err)
					}

					select {
					case out <- packet:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i)
	}

	return out, nil
}

// ParsePacket 按载荷协议解码单个数据包,结果写入ParserResult
func (p *ProtocolParser) ParsePacket(packet *types.Packet) error {
	switch packet.PayloadProtocol {
	case "BGP":
		update, err := protocol.ParseBGPUpdate(packet.RawData)
		if err != nil {
			return err
		}
		packet.ParserResult = update
	case "OSPF":
		pkt, err := protocol.ParseOSPFRouterLSA(packet.RawData)
		if err != nil {
			return err
		}
		packet.ParserResult = pkt
	default:
		return fmt.Errorf("unsupported payload protocol: %q", packet.PayloadProtocol)
	}
	return nil
}
