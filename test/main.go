package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/haolipeng/route_traffic_analyzer/pkg/source"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// 手动调试用的小工具:用模拟器生成若干报文,
// 把NDJSON记录打印到标准输出,便于检查编码结果
func main() {
	count := flag.Int("count", 10, "生成报文数量")
	seed := flag.Int64("seed", 42, "随机种子")
	flag.Parse()

	cfg := &config.Config{}
	cfg.Simulator.Count = *count
	cfg.Simulator.Seed = *seed
	cfg.Simulator.Routers = []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	cfg.Simulator.Peers = []string{"192.168.1.1", "192.168.1.2"}
	cfg.Simulator.Prefixes = []string{"10.10.0.0/16", "10.20.0.0/16", "172.16.0.0/12"}
	cfg.Simulator.Neighbors = []string{"10.0.0.2", "10.0.0.3"}
	cfg.Pipeline.BufferSize = 100

	src, err := source.NewSimulatorSource(cfg)
	if err != nil {
		log.Fatalf("create simulator source: %v", err)
	}

	var wg sync.WaitGroup
	if err := src.Start(context.Background(), &wg); err != nil {
		log.Fatalf("start simulator source: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	for packet := range src.Output() {
		if err := encoder.Encode(types.NewCaptureRecord(packet)); err != nil {
			log.Fatalf("encode record: %v", err)
		}
	}
	wg.Wait()

	fmt.Fprintf(os.Stderr, "generated %d packets\n", *count)
}
