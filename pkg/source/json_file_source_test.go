package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const captureLines = `{"timestamp":0.0,"src_ip":"192.168.1.1","dst_ip":"10.0.0.1","transport_protocol":"TCP","payload_protocol":"BGP","length":3,"latency_ms":42,"throughput_mbps":120,"payload_hex":"ff0102"}

not a json line
{"timestamp":0.25,"src_ip":"10.0.0.1","dst_ip":"224.0.0.5","transport_protocol":"IP","payload_protocol":"OSPF","length":2,"latency_ms":15,"throughput_mbps":90,"payload_hex":"0204"}
{"payload_hex":"zz"}
`

// TestJSONFileSourceReadsRecords 逐行读取记录,跳过空行和坏行
func TestJSONFileSourceReadsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(captureLines), 0644))

	src, err := NewJSONFileSource(path, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	require.NoError(t, src.Start(context.Background(), &wg))

	var packets []string
	for packet := range src.Output() {
		packets = append(packets, packet.PayloadProtocol)
	}
	wg.Wait()

	assert.Equal(t, []string{"BGP", "OSPF"}, packets)
	assert.Equal(t, uint64(2), atomic.LoadUint64(&src.GetStats().ErrorCount), "坏行应计入错误数")
}

// TestJSONFileSourceMissingFile 文件不存在应在构造时报错
func TestJSONFileSourceMissingFile(t *testing.T) {
	_, err := NewJSONFileSource("/nonexistent/capture.jsonl", 10)
	assert.Error(t, err)
}
