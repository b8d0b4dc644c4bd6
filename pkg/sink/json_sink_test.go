package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// TestJSONLinesSinkWritesRecords 每个数据包写成一行NDJSON记录
func TestJSONLinesSinkWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.jsonl")

	s, err := NewJSONLinesSink(path)
	require.NoError(t, err)

	in := make(chan *types.Packet, 3)
	in <- &types.Packet{
		ID: "p1", Timestamp: 0, SrcIP: "192.168.1.1", DstIP: "10.0.0.1",
		TransportProtocol: "TCP", PayloadProtocol: "BGP",
		Length: 2, RawData: []byte{0xff, 0x01},
		LatencyMs: 42, ThroughputMbps: 120,
	}
	in <- &types.Packet{
		ID: "p2", Timestamp: 0.25, SrcIP: "10.0.0.1", DstIP: "224.0.0.5",
		TransportProtocol: "IP", PayloadProtocol: "OSPF",
		Length: 1, RawData: []byte{0x02},
		LatencyMs: 15, ThroughputMbps: 90,
	}
	// 无载荷的数据包应被跳过
	in <- &types.Packet{ID: "p3"}
	close(in)

	require.NoError(t, s.Consume(context.Background(), in))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []types.CaptureRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record types.CaptureRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "ff01", records[0].PayloadHex)
	assert.Equal(t, "BGP", records[0].PayloadProtocol)
	assert.Equal(t, "02", records[1].PayloadHex)

	assert.Equal(t, uint64(2), atomic.LoadUint64(&s.GetStats().PacketsWritten))
}

// TestJSONLinesSinkReadySignal Consume启动后Ready应被关闭
func TestJSONLinesSinkReadySignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.jsonl")

	s, err := NewJSONLinesSink(path)
	require.NoError(t, err)

	in := make(chan *types.Packet)
	close(in)
	require.NoError(t, s.Consume(context.Background(), in))

	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready信号应已关闭")
	}
}
